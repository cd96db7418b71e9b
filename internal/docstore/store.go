// Package docstore is a SQLite-backed document store. Documents are kept as
// compressed bodies next to the columns a visit needs for bucket pruning and
// ordered scans, and feed operations are applied with their test-and-set
// conditions evaluated as selections.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"docselect/internal/bucket"
	"docselect/internal/document"
	"docselect/internal/logging"
	"docselect/internal/selection"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConditionFailed is returned when a test-and-set condition does not
	// evaluate to true for the stored document.
	ErrConditionFailed = errors.New("condition not met")
)

// Store is a document store backed by a single SQLite file.
type Store struct {
	db      *sql.DB
	path    string
	reg     *document.Registry
	factory bucket.Factory
	logger  *slog.Logger

	conditions *conditionCache

	// mu serializes read-modify-write operations (Update, conditional Apply).
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithFactory sets the bucket factory used to place documents.
func WithFactory(f bucket.Factory) Option {
	return func(s *Store) { s.factory = f }
}

// Open opens or creates the store at path and runs pending migrations.
func Open(path string, reg *document.Registry, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows a single writer; funnel everything through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	from, to, err := migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	s := &Store{
		db:      db,
		path:    path,
		reg:     reg,
		factory: bucket.NewFactory(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Default(s.logger).With("component", "docstore", "path", path)
	if to != from {
		s.logger.Info("schema migrated", "from", from, "to", to)
	}
	s.conditions = newConditionCache(reg, s.factory)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Registry returns the document type registry the store decodes with.
func (s *Store) Registry() *document.Registry { return s.reg }

// Factory returns the bucket factory the store places documents with.
func (s *Store) Factory() bucket.Factory { return s.factory }

// Put inserts or replaces a document.
func (s *Store) Put(ctx context.Context, doc *document.Document) error {
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	var ordering, width, division sql.NullInt64
	if doc.ID.IsOrdered() {
		ordering = sql.NullInt64{Int64: int64(doc.ID.Ordering()), Valid: true}
		width = sql.NullInt64{Int64: int64(doc.ID.WidthBits()), Valid: true}
		division = sql.NullInt64{Int64: int64(doc.ID.DivisionBits()), Valid: true}
	}
	loc := s.factory.BucketID(doc.ID).Location()

	_, err = s.db.ExecContext(ctx, `INSERT INTO documents (id, doctype, loc, ordering, width, division, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			doctype = excluded.doctype,
			loc = excluded.loc,
			ordering = excluded.ordering,
			width = excluded.width,
			division = excluded.division,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		doc.ID.String(), doc.Type.Name(), int64(loc), ordering, width, division, body,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns a stored document or ErrNotFound.
func (s *Store) Get(ctx context.Context, id document.ID) (*document.Document, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE id = ?", id.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return decodeDocument(body, s.reg)
}

// Remove deletes a document and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id document.ID) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id.String())
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", id, err)
	}
	return n > 0, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Update applies partial field updates to a stored document and returns the
// updated document.
func (s *Store) Update(ctx context.Context, u *document.Update) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(ctx, u)
}

func (s *Store) update(ctx context.Context, u *document.Update) (*document.Document, error) {
	doc, err := s.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if err := doc.Apply(u.Updates); err != nil {
		return nil, fmt.Errorf("update %s: %w", u.ID, err)
	}
	if err := s.Put(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Apply executes a feed operation. When the operation carries a condition, it
// is evaluated against the stored document first; the operation proceeds only
// if the result is TRUE, otherwise ErrConditionFailed is returned. A missing
// document fails any condition. Apply returns the document the operation
// produced or fetched, or nil for a remove.
func (s *Store) Apply(ctx context.Context, fo document.FeedOperation) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fo.Condition != "" {
		if err := s.checkCondition(ctx, fo.Op.DocumentID(), fo.Condition); err != nil {
			return nil, err
		}
	}

	switch op := fo.Op.(type) {
	case *document.Put:
		if err := s.Put(ctx, op.Document); err != nil {
			return nil, err
		}
		return op.Document, nil
	case *document.Update:
		return s.update(ctx, op)
	case *document.Remove:
		found, err := s.Remove(ctx, op.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, op.ID)
		}
		return nil, nil
	case *document.Get:
		return s.Get(ctx, op.ID)
	}
	return nil, fmt.Errorf("unsupported operation %T", fo.Op)
}

func (s *Store) checkCondition(ctx context.Context, id document.ID, condition string) error {
	sel, err := s.conditions.get(condition)
	if err != nil {
		return fmt.Errorf("condition for %s: %w", id, err)
	}

	current, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s does not exist", ErrConditionFailed, id)
	}
	if err != nil {
		return err
	}

	res, err := sel.Evaluate(&document.Put{Document: current})
	if err != nil {
		s.logger.Debug("condition evaluation fault", "id", id.String(), "error", err)
		return fmt.Errorf("%w: %s: %w", ErrConditionFailed, id, err)
	}
	if res != selection.True {
		return fmt.Errorf("%w: %s evaluated to %s", ErrConditionFailed, id, res)
	}
	return nil
}
