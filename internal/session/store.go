package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arjun/pinpoint/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS workspaces (
    id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    edit_count INTEGER NOT NULL DEFAULT 0,
    sessions_used INTEGER NOT NULL DEFAULT 0,
    history_index INTEGER NOT NULL DEFAULT 0,
    session_json TEXT,
    hotspots_json TEXT NOT NULL DEFAULT '[]',
    history_json TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_workspaces_updated_at ON workspaces(updated_at);
`

// Store persists editing snapshots so a user can resume a session. One row
// per image workspace.
type Store struct {
	db *sql.DB
}

func NewStore() (*Store, error) {
	dbPath, err := defaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(dbPath)
}

func NewStoreWithPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func defaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pinpoint", "workspaces.db"), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the snapshot for a workspace id.
func (s *Store) Save(ctx context.Context, id string, snap *Snapshot) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, created_at, updated_at, edit_count, sessions_used, history_index, session_json, hotspots_json, history_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     updated_at = excluded.updated_at,
		     edit_count = excluded.edit_count,
		     sessions_used = excluded.sessions_used,
		     history_index = excluded.history_index,
		     session_json = excluded.session_json,
		     hotspots_json = excluded.hotspots_json,
		     history_json = excluded.history_json`,
		id, now, now, snap.EditCount, snap.SessionsUsed, snap.HistoryIndex,
		nullString(snap.sessionJSON()), snap.hotspotsJSON(), snap.historyJSON())
	return err
}

// Load returns the persisted snapshot for a workspace id.
func (s *Store) Load(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT edit_count, sessions_used, history_index, session_json, hotspots_json, history_json
		 FROM workspaces WHERE id = ?`, id)

	snap := &Snapshot{}
	var sessionJSON sql.NullString
	var hotspotsJSON, historyJSON string
	if err := row.Scan(&snap.EditCount, &snap.SessionsUsed, &snap.HistoryIndex,
		&sessionJSON, &hotspotsJSON, &historyJSON); err != nil {
		return nil, err
	}

	if sessionJSON.Valid && sessionJSON.String != "" {
		sess := &Session{}
		if err := json.Unmarshal([]byte(sessionJSON.String), sess); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		snap.Session = sess
	}
	if err := json.Unmarshal([]byte(hotspotsJSON), &snap.Hotspots); err != nil {
		return nil, fmt.Errorf("failed to decode hotspots: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &snap.History); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if snap.Hotspots == nil {
		snap.Hotspots = []models.Hotspot{}
	}
	return snap, nil
}

// WorkspaceInfo summarizes a persisted workspace for listings.
type WorkspaceInfo struct {
	ID           string
	UpdatedAt    time.Time
	EditCount    int
	HotspotCount int
}

// List returns all persisted workspaces, most recently updated first.
func (s *Store) List(ctx context.Context) ([]WorkspaceInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, updated_at, edit_count, hotspots_json
		 FROM workspaces ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []WorkspaceInfo
	for rows.Next() {
		var info WorkspaceInfo
		var hotspotsJSON string
		if err := rows.Scan(&info.ID, &info.UpdatedAt, &info.EditCount, &hotspotsJSON); err != nil {
			return nil, err
		}
		var hotspots []models.Hotspot
		if err := json.Unmarshal([]byte(hotspotsJSON), &hotspots); err == nil {
			info.HotspotCount = len(hotspots)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
