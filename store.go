package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	ActionGeneralComment = "general_comment"
	ActionInlineComment  = "inline_comment"
	ActionIssueComment   = "issue_comment"
	ActionBranch         = "branch"
)

// Action is one outbound write the bot attempted against GitHub.
type Action struct {
	ID           int64     `db:"id"`
	Kind         string    `db:"kind"`
	Repo         string    `db:"repo"`
	Number       int       `db:"number"`
	Target       string    `db:"target"`
	Body         string    `db:"body"`
	Success      bool      `db:"success"`
	ErrorMessage string    `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
}

type ActionStore interface {
	RecordAction(ctx context.Context, action Action) error
	RecentActions(ctx context.Context, repo string, limit int) ([]Action, error)
	Close() error
}

type PostgresStore struct {
	db *sqlx.DB
}

func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := NewPostgresStore(db)
	if err := store.initTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) initTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bot_actions (
		id SERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		repo TEXT NOT NULL,
		number INTEGER NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL DEFAULT true,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_bot_actions_repo ON bot_actions(repo);
	CREATE INDEX IF NOT EXISTS idx_bot_actions_created_at ON bot_actions(created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) RecordAction(ctx context.Context, action Action) error {
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO bot_actions (kind, repo, number, target, body, success, error_message, created_at)
		VALUES (:kind, :repo, :number, :target, :body, :success, :error_message, :created_at)`, action)
	if err != nil {
		return fmt.Errorf("failed to record %s action: %w", action.Kind, err)
	}
	return nil
}

func (s *PostgresStore) RecentActions(ctx context.Context, repo string, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 20
	}

	var actions []Action
	var err error
	if repo == "" {
		err = s.db.SelectContext(ctx, &actions, `
			SELECT id, kind, repo, number, target, body, success, error_message, created_at
			FROM bot_actions ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		err = s.db.SelectContext(ctx, &actions, `
			SELECT id, kind, repo, number, target, body, success, error_message, created_at
			FROM bot_actions WHERE repo = $1 ORDER BY created_at DESC LIMIT $2`, repo, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}
	return actions, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type nopStore struct{}

func (nopStore) RecordAction(context.Context, Action) error { return nil }

func (nopStore) RecentActions(context.Context, string, int) ([]Action, error) { return nil, nil }

func (nopStore) Close() error { return nil }

// newAction fills the outcome fields from err.
func newAction(kind string, repo RepoRef, number int, target, body string, err error) Action {
	action := Action{
		Kind:    kind,
		Repo:    repo.String(),
		Number:  number,
		Target:  target,
		Body:    body,
		Success: err == nil,
	}
	if err != nil {
		action.ErrorMessage = err.Error()
	}
	return action
}
