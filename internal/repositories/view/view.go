package view

import (
	"context"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=view.go -destination=mocks/mock.go

// Repository is the durable sink for seen events. RecordView marks every
// story of ownerID active as of asOf as viewed by viewerID, which is what
// flips the owner's tray entry to seen for that viewer.
type Repository interface {
	RecordView(ctx context.Context, ownerID, viewerID string, asOf time.Time) error
}
