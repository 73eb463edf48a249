package ticket

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/paulyokota/feedforward/internal/model"
)

// SQLiteStore is the durable Store backing CLI runs. The UNIQUE index on
// canonical_signature makes the one-ticket-per-signature invariant
// structural rather than a property the orchestrator has to maintain.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) the ticket database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ticket db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tickets (
		id                  TEXT PRIMARY KEY,
		canonical_signature TEXT NOT NULL UNIQUE,
		title               TEXT NOT NULL DEFAULT '',
		product_area        TEXT NOT NULL DEFAULT '',
		component           TEXT NOT NULL DEFAULT '',
		conversation_ids    TEXT NOT NULL DEFAULT '[]',
		count               INTEGER NOT NULL DEFAULT 0,
		poor_evidence       INTEGER NOT NULL DEFAULT 0,
		created_at          DATETIME NOT NULL,
		last_updated_at     DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_signature ON tickets(canonical_signature);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ticket schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindByCanonicalSignature implements Store.
func (s *SQLiteStore) FindByCanonicalSignature(ctx context.Context, sig string) (*model.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, canonical_signature, title, product_area, component, conversation_ids, count, poor_evidence, created_at, last_updated_at
		 FROM tickets WHERE canonical_signature = ?`, sig)

	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket %q: %w", sig, err)
	}
	return t, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, t *model.Ticket) error {
	ids, err := json.Marshal(t.ConversationIDs)
	if err != nil {
		return fmt.Errorf("encode conversation ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, canonical_signature, title, product_area, component, conversation_ids, count, poor_evidence, created_at, last_updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CanonicalSignature, t.Title, t.ProductArea, t.Component,
		string(ids), t.Count, boolToInt(t.PoorEvidence), t.CreatedAt, t.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("create ticket %q: %w", t.CanonicalSignature, err)
	}
	return nil
}

// Update implements Store. The merge happens inside a transaction so a
// concurrent reader never sees a half-applied delta.
func (s *SQLiteStore) Update(ctx context.Context, id string, delta model.EvidenceDelta) (*model.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT id, canonical_signature, title, product_area, component, conversation_ids, count, poor_evidence, created_at, last_updated_at
		 FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("update ticket %s: not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", id, err)
	}

	t.ConversationIDs = mergeIDs(t.ConversationIDs, delta.ConversationIDs)
	t.Count = len(t.ConversationIDs)
	if delta.PoorEvidence {
		t.PoorEvidence = true
	}
	t.LastUpdatedAt = time.Now().UTC()

	ids, err := json.Marshal(t.ConversationIDs)
	if err != nil {
		return nil, fmt.Errorf("encode conversation ids: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tickets SET conversation_ids = ?, count = ?, poor_evidence = ?, last_updated_at = ? WHERE id = ?`,
		string(ids), t.Count, boolToInt(t.PoorEvidence), t.LastUpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update ticket %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return t, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]model.Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, canonical_signature, title, product_area, component, conversation_ids, count, poor_evidence, created_at, last_updated_at
		 FROM tickets ORDER BY canonical_signature`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row scanner) (*model.Ticket, error) {
	var t model.Ticket
	var ids string
	var poor int
	if err := row.Scan(&t.ID, &t.CanonicalSignature, &t.Title, &t.ProductArea, &t.Component,
		&ids, &t.Count, &poor, &t.CreatedAt, &t.LastUpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &t.ConversationIDs); err != nil {
		return nil, fmt.Errorf("decode conversation ids: %w", err)
	}
	t.PoorEvidence = poor != 0
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
