package docstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    path       VARCHAR(512) NOT NULL PRIMARY KEY,
    data       JSON         NOT NULL,
    updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

// MySQLStore keeps documents in a single table keyed by path. It has no change
// feed, so mirrors over it only see other writers on reload.
type MySQLStore struct{ db *sql.DB }

func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *MySQLStore) Get(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *MySQLStore) Set(ctx context.Context, path string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (path, data) VALUES (?, ?)
ON DUPLICATE KEY UPDATE data = VALUES(data)`, path, data)
	return err
}

func (s *MySQLStore) Create(ctx context.Context, path string, data []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT IGNORE INTO documents (path, data) VALUES (?, ?)`, path, data)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// rows == 0 → a document already exists at path
	return rows == 1, nil
}

func (s *MySQLStore) Update(ctx context.Context, path string, fn UpdateFunc) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var cur []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ? FOR UPDATE`, path).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return cur, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET data = ? WHERE path = ?`, next, path); err != nil {
		return nil, err
	}
	return next, tx.Commit()
}

func (s *MySQLStore) Delete(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	return err
}

func (s *MySQLStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, data FROM documents WHERE path LIKE ? ORDER BY path`, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Data); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *MySQLStore) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path LIKE ?`, likePrefix(prefix))
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(p string) string { return likeEscaper.Replace(p) + "%" }

var _ Store = (*MySQLStore)(nil)
