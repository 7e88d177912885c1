// Package pgstore implements the store capability over PostgreSQL. CRUD goes
// through database/sql with the pgx stdlib driver; the change feed rides
// LISTEN/NOTIFY, fed by triggers installed with the embedded migrations.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tastekeeper/internal/common"
	"github.com/dmitrijs2005/tastekeeper/internal/dbx"
	"github.com/dmitrijs2005/tastekeeper/internal/logging"
	"github.com/dmitrijs2005/tastekeeper/internal/store"
	"github.com/dmitrijs2005/tastekeeper/internal/store/pgstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var errUnknownCollection = errors.New("unknown collection")

// table describes one synchronized collection's schema.
type table struct {
	// columns is the full select list; id, user_id and created_at are
	// server-assigned and never written by clients.
	columns []string
	// readCasts rewrites a column in the select list, e.g. date columns
	// read as text so the wire row carries the plain date string.
	readCasts map[string]string
	// writeCasts annotates insert/update placeholders whose text
	// parameters need an explicit cast.
	writeCasts map[string]string
	// jsonCols are decoded from jsonb bytes into wire values.
	jsonCols map[string]bool
}

var tables = map[string]table{
	"restaurant_logs": {
		columns:    []string{"id", "user_id", "name", "location", "rating", "date_visited", "review", "tags", "created_at"},
		readCasts:  map[string]string{"date_visited": "date_visited::text"},
		writeCasts: map[string]string{"tags": "::jsonb", "date_visited": "::date"},
		jsonCols:   map[string]bool{"tags": true},
	},
	"eat_later": {
		columns:    []string{"id", "user_id", "name", "location", "notes", "tags", "created_at"},
		writeCasts: map[string]string{"tags": "::jsonb"},
		jsonCols:   map[string]bool{"tags": true},
	},
}

var serverAssigned = map[string]bool{"id": true, "user_id": true, "created_at": true}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db       *sql.DB
	log      logging.Logger
	listener *listener
	cancel   context.CancelFunc
}

// New opens the database, runs pending migrations, and starts the
// change-feed listener. Close releases both.
func New(ctx context.Context, dsn string, log logging.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	l := newListener(dsn, log)
	go l.run(listenCtx)

	return &Store{db: db, log: log, listener: l, cancel: cancel}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close stops the listener and closes the database.
func (s *Store) Close() error {
	s.cancel()
	return s.db.Close()
}

// DB exposes the underlying handle for callers that need raw access
// (tooling, tests).
func (s *Store) DB() dbx.DBTX {
	return s.db
}

func (s *Store) Query(ctx context.Context, collection, owner string) ([]store.Row, error) {
	tbl, ok := tables[collection]
	if !ok {
		return nil, store.NewError("query", collection, errUnknownCollection)
	}

	selects := make([]string, len(tbl.columns))
	for i, col := range tbl.columns {
		if expr, ok := tbl.readCasts[col]; ok {
			selects[i] = expr
			continue
		}
		selects[i] = col
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE user_id = $1 ORDER BY created_at DESC",
		strings.Join(selects, ", "), collection,
	)
	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, store.NewError("query", collection, err)
	}
	defer rows.Close()

	var result []store.Row
	for rows.Next() {
		dest := make([]any, len(tbl.columns))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, store.NewError("query", collection, err)
		}

		row := make(store.Row, len(tbl.columns))
		for i, col := range tbl.columns {
			row[col] = wireValue(col, *dest[i].(*any), tbl)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewError("query", collection, err)
	}
	return result, nil
}

func (s *Store) Insert(ctx context.Context, collection, owner string, row store.Row) error {
	tbl, ok := tables[collection]
	if !ok {
		return store.NewError("insert", collection, errUnknownCollection)
	}

	cols := []string{"user_id"}
	placeholders := []string{"$1"}
	args := []any{owner}
	for _, col := range tbl.columns {
		if serverAssigned[col] {
			continue
		}
		v, ok := row[col]
		if !ok {
			continue
		}
		cols = append(cols, col)
		args = append(args, writeValue(v))
		placeholders = append(placeholders, fmt.Sprintf("$%d%s", len(args), tbl.writeCasts[col]))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		collection, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return store.NewError("insert", collection, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id, owner string, patch store.Row) error {
	tbl, ok := tables[collection]
	if !ok {
		return store.NewError("update", collection, errUnknownCollection)
	}

	var sets []string
	var args []any
	for _, col := range tbl.columns {
		if serverAssigned[col] {
			continue
		}
		v, ok := patch[col]
		if !ok {
			continue
		}
		args = append(args, writeValue(v))
		sets = append(sets, fmt.Sprintf("%s = $%d%s", col, len(args), tbl.writeCasts[col]))
	}
	if len(sets) == 0 {
		return store.NewError("update", collection, errors.New("empty patch"))
	}

	args = append(args, id, owner)
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d::uuid AND user_id = $%d",
		collection, strings.Join(sets, ", "), len(args)-1, len(args),
	)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.NewError("update", collection, err)
	}
	return matchedOne(res, "update", collection)
}

func (s *Store) Delete(ctx context.Context, collection, id, owner string) error {
	if _, ok := tables[collection]; !ok {
		return store.NewError("delete", collection, errUnknownCollection)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1::uuid AND user_id = $2", collection)
	res, err := s.db.ExecContext(ctx, query, id, owner)
	if err != nil {
		return store.NewError("delete", collection, err)
	}
	return matchedOne(res, "delete", collection)
}

// Subscribe registers fn with the LISTEN/NOTIFY listener.
func (s *Store) Subscribe(ctx context.Context, collection, owner string, fn func(store.Event)) (store.Subscription, error) {
	if _, ok := tables[collection]; !ok {
		return nil, store.NewError("subscribe", collection, errUnknownCollection)
	}
	return s.listener.subscribe(collection, owner, fn), nil
}

// matchedOne maps "zero rows affected" on an id+owner scoped write to
// common.ErrorNotFound: the row is missing or belongs to someone else.
func matchedOne(res sql.Result, op, collection string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return store.NewError(op, collection, err)
	}
	if n == 0 {
		return store.NewError(op, collection, common.ErrorNotFound)
	}
	return nil
}

// wireValue converts a scanned database value into its wire-row shape.
// Numeric columns arrive as text; the domain mapper owns the coercion.
func wireValue(col string, v any, tbl table) any {
	switch value := v.(type) {
	case nil:
		return nil
	case time.Time:
		return value.UTC().Format(time.RFC3339Nano)
	case []byte:
		if tbl.jsonCols[col] {
			var decoded any
			if err := json.Unmarshal(value, &decoded); err != nil {
				return nil
			}
			return decoded
		}
		return string(value)
	default:
		return value
	}
}

// writeValue converts a wire value into a driver argument.
func writeValue(v any) any {
	switch value := v.(type) {
	case []string:
		data, _ := json.Marshal(value)
		return string(data)
	case []any:
		data, _ := json.Marshal(value)
		return string(data)
	default:
		return v
	}
}
