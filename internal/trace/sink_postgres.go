package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresSink inserts records into the agent trace table.
type PostgresSink struct {
	db    *sql.DB
	table string
}

func NewPostgresSink(db *sql.DB, table string) (*PostgresSink, error) {
	if db == nil {
		return nil, errors.New("trace database is required")
	}
	if table == "" {
		table = "agent_traces"
	}
	return &PostgresSink{db: db, table: pq.QuoteIdentifier(table)}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Migrate creates the trace table when missing.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			event_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			detail JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create trace table: %w", err)
	}
	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (event_id, created_at)`,
		pq.QuoteIdentifier(unquoted(s.table)+"_event_idx"), s.table)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create trace index: %w", err)
	}
	return nil
}

func (s *PostgresSink) Write(ctx context.Context, r Record) error {
	detail := []byte("{}")
	if len(r.Detail) > 0 {
		b, err := json.Marshal(r.Detail)
		if err != nil {
			return fmt.Errorf("marshal trace detail: %w", err)
		}
		detail = b
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_id, stage, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, s.table)
	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(),
		r.EventID,
		string(r.Stage),
		string(r.Status),
		string(detail),
		r.At,
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

// ListByEvent returns the records of one event, oldest first.
func (s *PostgresSink) ListByEvent(ctx context.Context, eventID string) ([]Record, error) {
	query := fmt.Sprintf(`
		SELECT id, event_id, stage, status, detail, created_at
		FROM %s
		WHERE event_id = $1
		ORDER BY created_at
	`, s.table)
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r      Record
			id     string
			stage  string
			status string
			detail []byte
		)
		if err := rows.Scan(&id, &r.EventID, &stage, &status, &detail, &r.At); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		if err := r.ID.UnmarshalText([]byte(id)); err != nil {
			return nil, fmt.Errorf("scan trace id: %w", err)
		}
		r.Stage, r.Status = Stage(stage), Status(status)
		if len(detail) > 0 && string(detail) != "{}" {
			if err := json.Unmarshal(detail, &r.Detail); err != nil {
				return nil, fmt.Errorf("decode trace detail: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}
	return out, nil
}

func unquoted(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return ident[1 : len(ident)-1]
	}
	return ident
}
