// Package position persists the reading position per book: a lookup key
// (chapterID, pageIndex, subchapterID) into the pagination output.
package position

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Position is where the reader left off in a book.
type Position struct {
	ChapterID    string
	PageIndex    int
	SubchapterID string
}

// Store keeps positions in a local SQLite database, one row per book.
type Store struct {
	conn *sqlite.Conn
}

// Open creates or opens the position database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == ":memory:" {
		flags = []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenMemory}
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("unable to open position store %q: %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, `
		CREATE TABLE IF NOT EXISTS positions (
			book_id       TEXT PRIMARY KEY,
			chapter_id    TEXT NOT NULL,
			page_index    INTEGER NOT NULL,
			subchapter_id TEXT NOT NULL DEFAULT ''
		)`, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare position store: %w", err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Put records the position for a book, replacing any previous one.
func (s *Store) Put(bookID string, pos Position) error {
	err := sqlitex.Execute(s.conn, `
		INSERT INTO positions (book_id, chapter_id, page_index, subchapter_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (book_id) DO UPDATE SET
			chapter_id = excluded.chapter_id,
			page_index = excluded.page_index,
			subchapter_id = excluded.subchapter_id`,
		&sqlitex.ExecOptions{
			Args: []any{bookID, pos.ChapterID, pos.PageIndex, pos.SubchapterID},
		})
	if err != nil {
		return fmt.Errorf("unable to store position for %q: %w", bookID, err)
	}
	return nil
}

// Get returns the stored position for a book, ok is false when the book was
// never opened.
func (s *Store) Get(bookID string) (Position, bool, error) {
	var (
		pos   Position
		found bool
	)
	err := sqlitex.Execute(s.conn, `
		SELECT chapter_id, page_index, subchapter_id FROM positions WHERE book_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{bookID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				pos.ChapterID = stmt.ColumnText(0)
				pos.PageIndex = stmt.ColumnInt(1)
				pos.SubchapterID = stmt.ColumnText(2)
				found = true
				return nil
			},
		})
	if err != nil {
		return Position{}, false, fmt.Errorf("unable to read position for %q: %w", bookID, err)
	}
	return pos, found, nil
}

// Forget drops the stored position for a book.
func (s *Store) Forget(bookID string) error {
	err := sqlitex.Execute(s.conn, `DELETE FROM positions WHERE book_id = ?`,
		&sqlitex.ExecOptions{Args: []any{bookID}})
	if err != nil {
		return fmt.Errorf("unable to forget position for %q: %w", bookID, err)
	}
	return nil
}
