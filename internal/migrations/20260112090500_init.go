package migrations

import (
	"context"
	"database/sql"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS stories (
			id VARCHAR PRIMARY KEY,
			owner_id VARCHAR NOT NULL,
			media_type VARCHAR NOT NULL,
			media_url VARCHAR NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_stories_owner_expires ON stories (owner_id, expires_at);

		CREATE TABLE IF NOT EXISTS story_views (
			story_id VARCHAR NOT NULL REFERENCES stories (id) ON DELETE CASCADE,
			viewer_id VARCHAR NOT NULL,
			viewed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (story_id, viewer_id)
		);

		CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR PRIMARY KEY,
			display_name VARCHAR NOT NULL DEFAULT '',
			avatar_url VARCHAR NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP TABLE IF EXISTS story_views;
		DROP TABLE IF EXISTS stories;
		DROP TABLE IF EXISTS profiles;
	`)
	if err != nil {
		return err
	}
	return nil
}
