// Package store keeps a write-behind audit copy of issues and missions in
// Postgres. The in-memory engine is the source of truth; the store exists so
// lifecycle history survives restarts and is queryable by operators.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"roadassist/internal/lifecycle"
)

type AuditStore struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(databaseURL string) (*AuditStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit store: %w", err)
	}
	return &AuditStore{db: db}, nil
}

func (s *AuditStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the audit tables if they do not exist.
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS issues (
			id          UUID PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL,
			reporter    TEXT NOT NULL,
			county      TEXT NOT NULL,
			latitude    NUMERIC(10, 6) NOT NULL,
			longitude   NUMERIC(10, 6) NOT NULL,
			state       TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS missions (
			id         UUID PRIMARY KEY,
			issue_id   UUID NOT NULL REFERENCES issues (id),
			type       TEXT NOT NULL,
			team_count INT NOT NULL,
			report     TEXT NOT NULL DEFAULT '',
			score      INT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *AuditStore) SaveIssue(ctx context.Context, issue *lifecycle.Issue) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (id, title, description, reporter, county, latitude, longitude, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		issue.ID, issue.Title, issue.Description, issue.Reporter.User.Username,
		issue.County.Name, issue.Location.Lat, issue.Location.Long,
		string(issue.State), issue.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert issue %s: %w", issue.ID, err)
	}
	return nil
}

func (s *AuditStore) UpdateIssueState(ctx context.Context, id uuid.UUID, state lifecycle.State) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE issues SET state = $2, updated_at = $3 WHERE id = $1`,
		id, string(state), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update issue %s state: %w", id, err)
	}
	return nil
}

func (s *AuditStore) SaveMission(ctx context.Context, mission *lifecycle.Mission) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO missions (id, issue_id, type, team_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		mission.ID, mission.Issue.ID, mission.Type.Name, len(mission.ServiceTeams), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert mission %s: %w", mission.ID, err)
	}
	return nil
}

func (s *AuditStore) UpdateMission(ctx context.Context, mission *lifecycle.Mission) error {
	var score sql.NullInt64
	if mission.Score != nil {
		score = sql.NullInt64{Int64: int64(*mission.Score), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE missions SET report = $2, score = $3, updated_at = $4 WHERE id = $1`,
		mission.ID, mission.Report, score, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update mission %s: %w", mission.ID, err)
	}
	return nil
}
