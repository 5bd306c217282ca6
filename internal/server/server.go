package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rameshsd/onlycreation-stories/internal/domain"
	"github.com/rameshsd/onlycreation-stories/internal/ratelimit"
	"github.com/rameshsd/onlycreation-stories/internal/stories"
	"github.com/rameshsd/onlycreation-stories/pkg/config"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"
	"go.uber.org/fx"
)

// viewerHeader carries the authenticated user id. Session issuance is an
// upstream gateway concern; this service trusts the header it is handed.
const viewerHeader = "X-User-ID"

type Opts struct {
	fx.In

	LC      fx.Lifecycle
	Stories stories.Client
	Logger  logger.Logger
	Config  *config.Config
}

type Server struct {
	stories  stories.Client
	logger   logger.Logger
	limiter  ratelimit.Limiter
	viewPool *ants.Pool
}

func New(opts Opts) (*Server, error) {
	// View writes are observability bookkeeping, not the critical path: a
	// bounded pool absorbs bursts without piling up goroutines.
	viewPool, err := ants.NewPool(16, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create view pool: %w", err)
	}

	s := &Server{
		stories:  opts.Stories,
		logger:   opts.Logger.WithComponent("HTTP"),
		limiter:  ratelimit.NewInMemoryLimiter(10, time.Second, 30),
		viewPool: viewPool,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/v1/tray", s.handleTray)
	mux.HandleFunc("/api/v1/stories", s.handleCreateStory)
	mux.HandleFunc("/api/v1/views", s.handleRecordView)
	mux.HandleFunc("/api/v1/profile", s.handleProfile)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Config.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.logger.Info("Starting HTTP server", "addr", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.logger.Error("HTTP server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			viewPool.Release()
			return srv.Shutdown(ctx)
		},
	})

	return s, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

type trayEntryDTO struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url"`
	IsSelf      bool       `json:"is_self"`
	HasUnseen   bool       `json:"has_unseen"`
	Stories     []storyDTO `json:"stories"`
}

type storyDTO struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	MediaType string    `json:"media_type"`
	MediaURL  string    `json:"media_url,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Seen      bool      `json:"seen"`
}

func (s *Server) handleTray(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	viewerID := r.Header.Get(viewerHeader)
	if viewerID == "" {
		http.Error(w, "missing "+viewerHeader, http.StatusUnauthorized)
		return
	}
	if !s.limiter.Allow(viewerID) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	var following []string
	if raw := r.URL.Query().Get("following"); raw != "" {
		following = strings.Split(raw, ",")
	}

	entries, err := s.stories.Tray(r.Context(), viewerID, following)
	if err != nil {
		s.logger.Error("Failed to build tray", "viewer_id", viewerID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	dto := make([]trayEntryDTO, len(entries))
	for i, e := range entries {
		dto[i] = toTrayEntryDTO(e, viewerID)
	}
	writeJSON(w, s.logger, http.StatusOK, dto)
}

func toTrayEntryDTO(e domain.StoryTrayEntry, viewerID string) trayEntryDTO {
	out := trayEntryDTO{
		UserID:      e.UserID,
		DisplayName: e.DisplayName,
		AvatarURL:   e.AvatarURL,
		IsSelf:      e.IsSelf,
		HasUnseen:   e.HasUnseen,
		Stories:     make([]storyDTO, len(e.Stories)),
	}
	for i, st := range e.Stories {
		out.Stories[i] = storyDTO{
			ID:        st.ID,
			OwnerID:   st.OwnerID,
			MediaType: string(st.MediaType),
			MediaURL:  st.MediaURL,
			Text:      st.Text,
			CreatedAt: st.CreatedAt,
			ExpiresAt: st.ExpiresAt,
			Seen:      st.SeenBy(viewerID),
		}
	}
	return out
}

type createStoryRequest struct {
	ID        string `json:"id"`
	MediaType string `json:"media_type"`
	MediaURL  string `json:"media_url"`
	Text      string `json:"text"`
}

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	viewerID := r.Header.Get(viewerHeader)
	if viewerID == "" {
		http.Error(w, "missing "+viewerHeader, http.StatusUnauthorized)
		return
	}
	if !s.limiter.Allow(viewerID) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	var req createStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	item := domain.NewStoryItem(req.ID, viewerID, domain.MediaType(req.MediaType), req.MediaURL, req.Text, time.Now())
	if err := s.stories.CreateStory(r.Context(), item); err != nil {
		if errors.Is(err, stories.ErrInvalidStory) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, stories.ErrDuplicateStory) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.logger.Error("Failed to create story", "owner_id", viewerID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, s.logger, http.StatusCreated, map[string]string{"id": item.ID})
}

type recordViewRequest struct {
	OwnerID string `json:"owner_id"`
}

// handleRecordView accepts the seen event and returns immediately; the
// durable write happens on the pool. A lost write costs one stale unseen
// ring, never playback.
func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	viewerID := r.Header.Get(viewerHeader)
	if viewerID == "" {
		http.Error(w, "missing "+viewerHeader, http.StatusUnauthorized)
		return
	}
	if !s.limiter.Allow(viewerID) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	var req recordViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnerID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	ownerID := req.OwnerID
	err := s.viewPool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.stories.RecordView(ctx, ownerID, viewerID); err != nil {
			s.logger.Error("Failed to record view", "owner_id", ownerID, "viewer_id", viewerID, "error", err)
		}
	})
	if err != nil {
		// Pool saturated or released: drop, same contract as a sink failure.
		s.logger.Warn("Dropped view record", "owner_id", ownerID, "viewer_id", viewerID, "error", err)
	}

	w.WriteHeader(http.StatusAccepted)
}

type profileDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// handleProfile serves the caller's own display profile: GET reads it,
// PUT creates or replaces it. The id always comes from the identity
// header, never the body.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	viewerID := r.Header.Get(viewerHeader)
	if viewerID == "" {
		http.Error(w, "missing "+viewerHeader, http.StatusUnauthorized)
		return
	}
	if !s.limiter.Allow(viewerID) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := s.stories.Profile(r.Context(), viewerID)
		if err != nil {
			if errors.Is(err, stories.ErrProfileNotFound) {
				http.Error(w, "profile not found", http.StatusNotFound)
				return
			}
			s.logger.Error("Failed to load profile", "profile_id", viewerID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, s.logger, http.StatusOK, profileDTO{ID: p.ID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL})
	case http.MethodPut:
		var req profileDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		p := domain.Profile{ID: viewerID, DisplayName: req.DisplayName, AvatarURL: req.AvatarURL}
		if err := s.stories.UpsertProfile(r.Context(), p); err != nil {
			s.logger.Error("Failed to upsert profile", "profile_id", viewerID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}
