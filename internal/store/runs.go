package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/drsadivural/adele-sub000/internal/agent"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Run is one persisted coordinator execution.
type Run struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Description string         `json:"description"`
	Input       map[string]any `json:"input,omitempty"`
	Summary     string         `json:"summary"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// SaveRun stores a run together with its message trace and artifacts in one
// transaction. A duplicate file path within the same run keeps the last
// written content.
func (s *Store) SaveRun(ctx context.Context, run *Run, msgs []agent.Message, arts *agent.Artifacts) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var inputJSON []byte
	if len(run.Input) > 0 {
		inputJSON, err = json.Marshal(run.Input)
		if err != nil {
			return fmt.Errorf("marshal input: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO task_runs (id, source, description, input, summary, success, error, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.Source, run.Description, inputJSON, run.Summary, run.Success, run.Error,
		run.CreatedAt, run.CompletedAt,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, m := range msgs {
		var metaJSON []byte
		if len(m.Metadata) > 0 {
			metaJSON, err = json.Marshal(m.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO run_messages (id, run_id, role, agent_name, content, metadata, ts)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)`,
			run.ID, m.Role, m.AgentName, m.Content, metaJSON, m.Timestamp,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if arts != nil {
		for _, f := range arts.Files {
			if _, err := tx.Exec(ctx, `
				INSERT INTO file_artifacts (id, run_id, path, content, type)
				VALUES (gen_random_uuid(), $1, $2, $3, $4)
				ON CONFLICT (run_id, path)
				DO UPDATE SET content = EXCLUDED.content, type = EXCLUDED.type`,
				run.ID, f.Path, f.Content, f.Type,
			); err != nil {
				return fmt.Errorf("insert file artifact: %w", err)
			}
		}
		for _, sa := range arts.Schemas {
			if _, err := tx.Exec(ctx, `
				INSERT INTO schema_artifacts (id, run_id, name, definition)
				VALUES (gen_random_uuid(), $1, $2, $3)`,
				run.ID, sa.Name, sa.Definition,
			); err != nil {
				return fmt.Errorf("insert schema artifact: %w", err)
			}
		}
		for _, d := range arts.Docs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO doc_artifacts (id, run_id, title, content)
				VALUES (gen_random_uuid(), $1, $2, $3)`,
				run.ID, d.Title, d.Content,
			); err != nil {
				return fmt.Errorf("insert doc artifact: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// GetRun retrieves a single run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var inputJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, source, description, input, summary, success, error, created_at, completed_at
		FROM task_runs
		WHERE id = $1`, id,
	).Scan(&r.ID, &r.Source, &r.Description, &inputJSON, &r.Summary, &r.Success, &r.Error,
		&r.CreatedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if len(inputJSON) > 0 {
		json.Unmarshal(inputJSON, &r.Input)
	}
	return &r, nil
}

// ListRuns retrieves recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, source, description, summary, success, error, created_at, completed_at
		FROM task_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.Description, &r.Summary, &r.Success, &r.Error,
			&r.CreatedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// Messages retrieves a run's message trace, ordered by timestamp.
func (s *Store) Messages(ctx context.Context, runID string) ([]agent.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT role, agent_name, content, metadata, ts
		FROM run_messages
		WHERE run_id = $1
		ORDER BY ts ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var msgs []agent.Message
	for rows.Next() {
		var m agent.Message
		var metaJSON []byte
		if err := rows.Scan(&m.Role, &m.AgentName, &m.Content, &metaJSON, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(metaJSON) > 0 {
			json.Unmarshal(metaJSON, &m.Metadata)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Artifacts retrieves everything a run produced, grouped by kind.
func (s *Store) Artifacts(ctx context.Context, runID string) (*agent.Artifacts, error) {
	arts := &agent.Artifacts{}

	rows, err := s.db.Query(ctx, `
		SELECT path, content, type FROM file_artifacts WHERE run_id = $1 ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("get file artifacts: %w", err)
	}
	for rows.Next() {
		var f agent.FileArtifact
		if err := rows.Scan(&f.Path, &f.Content, &f.Type); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan file artifact: %w", err)
		}
		arts.Files = append(arts.Files, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT name, definition FROM schema_artifacts WHERE run_id = $1 ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("get schema artifacts: %w", err)
	}
	for rows.Next() {
		var sa agent.SchemaArtifact
		if err := rows.Scan(&sa.Name, &sa.Definition); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan schema artifact: %w", err)
		}
		arts.Schemas = append(arts.Schemas, sa)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT title, content FROM doc_artifacts WHERE run_id = $1 ORDER BY title`, runID)
	if err != nil {
		return nil, fmt.Errorf("get doc artifacts: %w", err)
	}
	for rows.Next() {
		var d agent.DocArtifact
		if err := rows.Scan(&d.Title, &d.Content); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan doc artifact: %w", err)
		}
		arts.Docs = append(arts.Docs, d)
	}
	rows.Close()
	return arts, rows.Err()
}
