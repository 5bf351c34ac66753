package ps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/valleykid/growup/log"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	k BLOB PRIMARY KEY,
	v BLOB NOT NULL
) WITHOUT ROWID`

// SQLiteStore is a KVStore on a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// lives on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", sqliteSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	log.Storage.Debug().Str("path", path).Msg("opened sqlite store")
	return &SQLiteStore{db: db}, nil
}

// Begin starts a database/sql transaction. The store has one connection, so
// transactions run one at a time.
func (s *SQLiteStore) Begin(ctx context.Context, writable bool) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx, writable: writable}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx       *sql.Tx
	writable bool
	changes  int

	mu   sync.Mutex
	done bool
}

func (t *sqliteTx) Writable() bool {
	return t.writable
}

func (t *sqliteTx) check(write bool) error {
	if t.done {
		return ErrTxDone
	}
	if write && !t.writable {
		return ErrReadOnlyTx
	}
	return nil
}

func (t *sqliteTx) Get(key []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(false); err != nil {
		return nil, err
	}

	var v []byte
	err := t.tx.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (t *sqliteTx) Set(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(true); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.Exec(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, value)
	if err == nil {
		t.changes++
	}
	return err
}

func (t *sqliteTx) Delete(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(true); err != nil {
		return err
	}
	res, err := t.tx.Exec(`DELETE FROM kv WHERE k = ?`, key)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	t.changes += int(n)
	return nil
}

func rangeClause(start, end []byte) (string, []any) {
	where, args := "k >= ?", []any{start}
	if start == nil {
		where, args = "1 = 1", nil
	}
	if end != nil {
		where += " AND k < ?"
		args = append(args, end)
	}
	return where, args
}

func (t *sqliteTx) DeleteRange(start, end []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(true); err != nil {
		return err
	}
	where, args := rangeClause(start, end)
	res, err := t.tx.Exec(`DELETE FROM kv WHERE `+where, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	t.changes += int(n)
	return nil
}

// NewIterator reads the whole range up front; a live *sql.Rows would hold the
// only connection.
func (t *sqliteTx) NewIterator(start, end []byte, reverse bool) (Iterator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(false); err != nil {
		return nil, err
	}

	where, args := rangeClause(start, end)
	rows, err := t.tx.Query(`SELECT k, v FROM kv WHERE `+where+` ORDER BY k`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer rows.Close()

	var items []kvItem
	for rows.Next() {
		var item kvItem
		if err := rows.Scan(&item.key, &item.value); err != nil {
			return nil, err
		}
		if item.value == nil {
			item.value = []byte{}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newSliceIterator(items, reverse), nil
}

func (t *sqliteTx) Commit() (Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return Transaction{}, ErrTxDone
	}
	t.done = true

	if !t.writable || t.changes == 0 {
		return Transaction{}, t.tx.Rollback()
	}
	if err := t.tx.Commit(); err != nil {
		return Transaction{}, fmt.Errorf("failed to commit: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Transaction{}, err
	}
	txn := Transaction{Id: id.String(), When: time.Now()}
	log.Storage.Debug().Str("id", txn.Id).Int("changes", t.changes).Msg("sqlite commit")
	return txn, nil
}

func (t *sqliteTx) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	_ = t.tx.Rollback()
}
