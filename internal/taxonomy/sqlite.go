package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/brocc/internal/taxon"
)

// maxLineageDepth bounds the parent walk so a corrupt table cannot loop forever.
const maxLineageDepth = 100

// insertBatchSize is the number of rows written per import transaction.
const insertBatchSize = 50000

// Node is one row of the taxonomy tree.
type Node struct {
	TaxID  int64
	Parent int64
	Name   string
	Rank   string
}

// AccessionTaxID maps an unversioned accession to its taxon id.
type AccessionTaxID struct {
	Accession string
	TaxID     int64
}

// SQLiteSource reads a local copy of the NCBI taxonomy.
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens an existing taxonomy database for lookups.
func OpenSQLite(dbPath string) (*SQLiteSource, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("taxonomy database: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteSource{db: db, path: dbPath}, nil
}

// CreateSQLite creates an empty taxonomy database at dbPath, replacing any
// existing file. Parent directories are created if they do not exist.
func CreateSQLite(dbPath string) (*SQLiteSource, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove old database: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteSource{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accessions (
		accession TEXT PRIMARY KEY,
		taxid INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nodes (
		taxid INTEGER PRIMARY KEY,
		parent INTEGER NOT NULL,
		name TEXT NOT NULL,
		rank TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteSource) Path() string { return s.path }

// TaxonID returns the taxon id of accession. The version suffix is ignored.
func (s *SQLiteSource) TaxonID(ctx context.Context, accession string) (string, error) {
	var taxID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT taxid FROM accessions WHERE accession = ?`, Unversion(accession),
	).Scan(&taxID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("accession %s: %w", accession, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(taxID, 10), nil
}

// Lineage walks parent links from taxonID up to the root and returns the
// path broadest first. The self-parented root node is not included.
func (s *SQLiteSource) Lineage(ctx context.Context, taxonID string) ([]taxon.Entry, error) {
	id, err := strconv.ParseInt(taxonID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("taxon %q: %w", taxonID, ErrNotFound)
	}
	stmt, err := s.db.PrepareContext(ctx, `SELECT parent, name, rank FROM nodes WHERE taxid = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var path []taxon.Entry
	for range maxLineageDepth {
		var (
			parent     int64
			name, rank string
		)
		err := stmt.QueryRowContext(ctx, id).Scan(&parent, &name, &rank)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, err
		}
		if parent == id {
			break
		}
		path = append(path, taxon.Entry{Name: name, Rank: rank})
		id = parent
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("taxon %s: %w", taxonID, ErrNotFound)
	}
	slices.Reverse(path)
	return path, nil
}

// InsertNodes loads nodes in batched transactions and returns the number
// of rows read. Duplicate taxon ids keep the first row.
func (s *SQLiteSource) InsertNodes(ctx context.Context, nodes iter.Seq2[Node, error]) (int, error) {
	return insertBatches(ctx, s.db, `INSERT OR IGNORE INTO nodes (taxid, parent, name, rank) VALUES (?, ?, ?, ?)`,
		nodes, func(n Node) []any { return []any{n.TaxID, n.Parent, n.Name, n.Rank} })
}

// InsertAccessions loads accession mappings in batched transactions and
// returns the number of rows read. Duplicate accessions keep the first mapping.
func (s *SQLiteSource) InsertAccessions(ctx context.Context, accs iter.Seq2[AccessionTaxID, error]) (int, error) {
	return insertBatches(ctx, s.db, `INSERT OR IGNORE INTO accessions (accession, taxid) VALUES (?, ?)`,
		accs, func(a AccessionTaxID) []any { return []any{a.Accession, a.TaxID} })
}

func insertBatches[T any](ctx context.Context, db *sql.DB, query string, rows iter.Seq2[T, error], args func(T) []any) (int, error) {
	var (
		tx    *sql.Tx
		stmt  *sql.Stmt
		total int
		inTx  int
	)
	commit := func() error {
		if tx == nil {
			return nil
		}
		_ = stmt.Close()
		err := tx.Commit()
		tx, stmt, inTx = nil, nil, 0
		return err
	}
	defer func() {
		if tx != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
		}
	}()

	for row, err := range rows {
		if err != nil {
			return total, err
		}
		if tx == nil {
			if tx, err = db.BeginTx(ctx, nil); err != nil {
				return total, err
			}
			if stmt, err = tx.PrepareContext(ctx, query); err != nil {
				_ = tx.Rollback()
				tx = nil
				return total, err
			}
		}
		if _, err := stmt.ExecContext(ctx, args(row)...); err != nil {
			return total, err
		}
		total++
		inTx++
		if inTx >= insertBatchSize {
			if err := commit(); err != nil {
				return total, err
			}
		}
	}
	return total, commit()
}

// Counts returns the number of accession and node rows.
func (s *SQLiteSource) Counts(ctx context.Context) (accessions, nodes int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accessions`).Scan(&accessions); err != nil {
		return 0, 0, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&nodes)
	return accessions, nodes, err
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
