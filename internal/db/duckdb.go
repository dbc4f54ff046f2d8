package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_symbol_id START 1;`,

		`CREATE TABLE IF NOT EXISTS symbols (
			id INTEGER PRIMARY KEY,
			ref_id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			element TEXT NOT NULL,
			name TEXT NOT NULL,
			qualified_name TEXT NOT NULL,
			parent TEXT,
			brief TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_qualified ON symbols (qualified_name)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// --- Symbol operations ---

type Symbol struct {
	ID            int
	RefID         string // Doxygen id
	Kind          string // member, compound or enumvalue
	Element       string // Doxygen kind attribute, e.g. function, class, page
	Name          string
	QualifiedName string
	Parent        string
	Brief         string
}

const symbolColumns = `id, ref_id, kind, element, name, qualified_name, parent, brief`

func scanSymbol(row interface{ Scan(...any) error }, s *Symbol) error {
	var parent, brief sql.NullString
	if err := row.Scan(&s.ID, &s.RefID, &s.Kind, &s.Element, &s.Name, &s.QualifiedName, &parent, &brief); err != nil {
		return err
	}
	s.Parent = parent.String
	s.Brief = brief.String
	return nil
}

// ReplaceSymbols swaps the whole inventory for symbols in one transaction.
// Later duplicates of a ref id are dropped.
func (db *DB) ReplaceSymbols(symbols []Symbol) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM symbols`); err != nil {
		return fmt.Errorf("clearing symbols: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO symbols (id, ref_id, kind, element, name, qualified_name, parent, brief)
		 VALUES (nextval('seq_symbol_id'), ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s.RefID == "" || seen[s.RefID] {
			continue
		}
		seen[s.RefID] = true
		if _, err := stmt.Exec(s.RefID, s.Kind, s.Element, s.Name, s.QualifiedName, s.Parent, s.Brief); err != nil {
			return fmt.Errorf("inserting symbol %s: %w", s.RefID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing symbols: %w", err)
	}
	return nil
}

// GetSymbol returns the first symbol with the qualified name, or nil.
func (db *DB) GetSymbol(qualifiedName string) (*Symbol, error) {
	var s Symbol
	err := scanSymbol(db.conn.QueryRow(
		`SELECT `+symbolColumns+` FROM symbols WHERE qualified_name = ? ORDER BY id LIMIT 1`,
		qualifiedName,
	), &s)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SearchSymbols returns symbols whose qualified name contains pattern,
// case-insensitively. pattern is matched literally.
func (db *DB) SearchSymbols(pattern string, limit int) ([]Symbol, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT `+symbolColumns+` FROM symbols
		 WHERE qualified_name ILIKE ? ESCAPE '\'
		 ORDER BY length(qualified_name), qualified_name LIMIT ?`,
		"%"+likeEscaper.Replace(pattern)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching symbols: %w", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var s Symbol
		if err := scanSymbol(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (db *DB) CountSymbols() (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&count)
	return count, err
}
