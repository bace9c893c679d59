package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/openfroyo/nifictl/pkg/rdf"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotInitialized is returned when the store is used before Init.
var ErrNotInitialized = errors.New("database not initialized")

// SQLiteStore is a triple store backed by SQLite. Terms are stored in their
// canonical N-Triples form, so pattern queries are plain equality joins.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration
type Config struct {
	// Path is the database file, or ":memory:" for a run-scoped graph.
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// An in-memory database lives exactly as long as its connection, so the
	// pool holds one connection that never expires.
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 1
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 1
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// NewMemoryStore creates, initializes and migrates an in-memory store.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.path
	if s.path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", s.path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// LoadFile loads a Turtle or N-Triples file. The path "-" reads stdin.
func (s *SQLiteStore) LoadFile(ctx context.Context, path string) (*Document, error) {
	if path == "-" {
		return s.Load(ctx, os.Stdin, rdf.FormatTurtle, "stdin")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return s.Load(ctx, f, rdf.FormatFromPath(path), path)
}

// Load parses one document into the store. Blank nodes are relabeled into a
// scope unique to this document. Nothing is inserted if parsing fails.
func (s *SQLiteStore) Load(ctx context.Context, r io.Reader, format rdf.Format, source string) (*Document, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	doc := &Document{
		ID:       uuid.NewString(),
		Source:   source,
		Scope:    rdf.NewScope(),
		Format:   format,
		LoadedAt: time.Now(),
	}

	dec, err := rdf.NewDecoder(r, format, doc.Scope)
	if err != nil {
		return nil, err
	}
	triples, err := dec.DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertTripleQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, tr := range triples {
		res, err := stmt.ExecContext(ctx, tr.Subject.String(), tr.Predicate.String(), tr.Object.String(), doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert triple %s: %w", tr, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			doc.Triples++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, source, scope, format, triples, loaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Source, doc.Scope, string(doc.Format), doc.Triples, doc.LoadedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit document: %w", err)
	}

	return doc, nil
}

const insertTripleQuery = `INSERT OR IGNORE INTO triples (subject, predicate, object, document) VALUES (?, ?, ?, ?)`

// Insert adds one fact. Malformed terms are rejected before touching the database.
func (s *SQLiteStore) Insert(ctx context.Context, tr rdf.Triple) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if err := tr.Validate(); err != nil {
		return fmt.Errorf("failed to insert triple: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, insertTripleQuery,
		tr.Subject.String(), tr.Predicate.String(), tr.Object.String(), "",
	); err != nil {
		return fmt.Errorf("failed to insert triple: %w", err)
	}
	return nil
}

// Query evaluates a pattern and returns its solutions in result order.
// Every projected column must be declared in the pattern's variables.
func (s *SQLiteStore) Query(ctx context.Context, p rdf.Pattern) ([]rdf.Solution, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	args := make([]any, 0, len(p.Params))
	for name, term := range p.Params {
		args = append(args, sql.Named(name, term.String()))
	}

	rows, err := s.db.QueryContext(ctx, p.Query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", p.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s: failed to read columns: %w", p.Name, err)
	}
	for _, c := range cols {
		if !p.HasVar(c) {
			return nil, fmt.Errorf("query %s projects undeclared variable %q", p.Name, c)
		}
	}

	var solutions []rdf.Solution
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("query %s: failed to scan row: %w", p.Name, err)
		}

		sol := make(rdf.Solution, len(cols))
		for i, v := range values {
			if !v.Valid {
				continue
			}
			term, err := rdf.ParseTerm(v.String)
			if err != nil {
				return nil, fmt.Errorf("query %s: column %s: %w", p.Name, cols[i], err)
			}
			sol[cols[i]] = term
		}
		solutions = append(solutions, sol)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", p.Name, err)
	}

	return solutions, nil
}

// Triples returns every stored fact in insertion order.
func (s *SQLiteStore) Triples(ctx context.Context) ([]rdf.Triple, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `SELECT subject, predicate, object FROM triples ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list triples: %w", err)
	}
	defer rows.Close()

	var triples []rdf.Triple
	for rows.Next() {
		var subj, pred, obj string
		if err := rows.Scan(&subj, &pred, &obj); err != nil {
			return nil, fmt.Errorf("failed to scan triple: %w", err)
		}

		var tr rdf.Triple
		if tr.Subject, err = rdf.ParseTerm(subj); err != nil {
			return nil, err
		}
		if tr.Predicate, err = rdf.ParseTerm(pred); err != nil {
			return nil, err
		}
		if tr.Object, err = rdf.ParseTerm(obj); err != nil {
			return nil, err
		}
		triples = append(triples, tr)
	}

	return triples, rows.Err()
}

// Export writes the whole graph, including facts inserted during the run.
func (s *SQLiteStore) Export(ctx context.Context, w io.Writer, format rdf.Format) error {
	triples, err := s.Triples(ctx)
	if err != nil {
		return err
	}
	return rdf.Encode(w, triples, format)
}

// Count returns the number of stored facts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrNotInitialized
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM triples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count triples: %w", err)
	}
	return n, nil
}

// Documents lists loaded documents in load order.
func (s *SQLiteStore) Documents(ctx context.Context) ([]*Document, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, scope, format, triples, loaded_at FROM documents ORDER BY loaded_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		var format string
		if err := rows.Scan(&d.ID, &d.Source, &d.Scope, &format, &d.Triples, &d.LoadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Format = rdf.Format(format)
		docs = append(docs, &d)
	}

	return docs, rows.Err()
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return ErrNotInitialized
	}

	return s.db.PingContext(ctx)
}
