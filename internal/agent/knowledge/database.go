package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const DefaultBackendLimit = 20

// Backend is a queryable store behind a database source.
type Backend interface {
	Search(ctx context.Context, q StructuredQuery, limit int) ([]Item, error)
}

type DatabaseSource struct {
	id      string
	backend Backend
	limit   int
}

func NewDatabaseSource(id string, backend Backend) *DatabaseSource {
	return &DatabaseSource{id: id, backend: backend, limit: DefaultBackendLimit}
}

func (s *DatabaseSource) ID() string   { return s.id }
func (s *DatabaseSource) Type() string { return SourceDatabase }

func (s *DatabaseSource) Search(ctx context.Context, q StructuredQuery) ([]Item, error) {
	items, err := s.backend.Search(ctx, q, s.limit)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Source = s.id
		items[i].Relevance = clamp01(items[i].Relevance)
	}
	return items, nil
}

// SQLiteBackend keeps documents in a SQLite table. Candidates are found with
// LIKE per query term and re-scored with the document scorer.
type SQLiteBackend struct {
	db         *sql.DB
	excerptLen int
}

// OpenSQLiteBackend opens (or creates) the database at dsn. Use ":memory:"
// for an ephemeral store.
func OpenSQLiteBackend(ctx context.Context, dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps ":memory:" databases shared across queries
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db, excerptLen: DefaultExcerptLength}
	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS knowledge_items (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		content      TEXT NOT NULL,
		tags         TEXT,
		category     TEXT,
		content_type TEXT,
		actions      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_category ON knowledge_items(category);
	`)
	return err
}

// Upsert inserts or replaces a document.
func (b *SQLiteBackend) Upsert(ctx context.Context, d Document) error {
	tags, err := json.Marshal(d.Tags)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(d.Actions)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO knowledge_items (id, title, content, tags, category, content_type, actions)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Content, string(tags), d.Category, d.ContentType, string(actions))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", d.ID, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM knowledge_items WHERE id = ?`, id)
	return err
}

func (b *SQLiteBackend) Search(ctx context.Context, q StructuredQuery, limit int) ([]Item, error) {
	terms := Terms(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultBackendLimit
	}

	var (
		likes []string
		args  []any
	)
	for _, t := range terms {
		pattern := "%" + t + "%"
		likes = append(likes, "(lower(title) LIKE ? OR lower(content) LIKE ? OR lower(tags) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	where := "(" + strings.Join(likes, " OR ") + ")"
	if c := q.Category(); c != "" {
		where += " AND (category IS NULL OR category = '' OR category = ?)"
		args = append(args, c)
	}
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, title, content, tags, content_type, actions FROM knowledge_items WHERE %s LIMIT ?`, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			d                  Document
			tags, typ, actions sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &tags, &typ, &actions); err != nil {
			return nil, err
		}
		if tags.Valid {
			_ = json.Unmarshal([]byte(tags.String), &d.Tags)
		}
		if actions.Valid {
			_ = json.Unmarshal([]byte(actions.String), &d.Actions)
		}
		contentType := typ.String
		if contentType == "" {
			contentType = SourceDatabase
		}
		out = append(out, Item{
			ID:        d.ID,
			Title:     d.Title,
			Content:   Excerpt(terms, d.Content, b.excerptLen),
			Relevance: Relevance(terms, d.Title, d.Content, d.Tags),
			Type:      contentType,
			Actions:   d.Actions,
		})
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

var (
	_ Source  = (*DatabaseSource)(nil)
	_ Backend = (*SQLiteBackend)(nil)
)
