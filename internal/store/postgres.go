// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/j-davidv/Donezo/internal/models"
)

const todosChannel = "todos_changed"

// PostgresConfig holds the connection settings for the Postgres-backed store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c PostgresConfig) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Postgres stores each collection as rows of (id, jsonb document). Partial
// updates are shallow JSONB merges, so a patch only ever touches the fields it
// names. Live subscriptions ride on LISTEN/NOTIFY: every todo mutation fires a
// notification and each watcher re-runs its filtered query, delivering a full
// replacement snapshot.
type Postgres struct {
	db  *sqlx.DB
	dsn string
}

// OpenPostgres connects, configures the pool, and creates the collection
// tables when missing.
func OpenPostgres(cfg PostgresConfig) (*Postgres, error) {
	dsn := cfg.dsn()
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{db: db, dsn: dsn}
	if err := p.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id  TEXT PRIMARY KEY,
			doc JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id  TEXT PRIMARY KEY,
			doc JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS todos_shared_with ON todos USING GIN ((doc->'sharedWith'))`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// Create implements TodoStore.
func (p *Postgres) Create(ctx context.Context, todo *models.Todo) (string, error) {
	stored := todo.Clone()
	stored.ID = uuid.NewString()

	doc, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal todo: %w", err)
	}
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO todos (id, doc) VALUES ($1, $2)`, stored.ID, doc,
	); err != nil {
		return "", fmt.Errorf("insert todo: %w", err)
	}
	p.notify(ctx)
	return stored.ID, nil
}

// Get implements TodoStore.
func (p *Postgres) Get(ctx context.Context, id string) (*models.Todo, error) {
	var doc []byte
	err := p.db.QueryRowxContext(ctx,
		`SELECT doc FROM todos WHERE id = $1`, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query todo: %w", err)
	}
	return decodeTodo(id, doc)
}

// Update implements TodoStore. The patch merges into the stored document;
// fields the patch does not name are left untouched.
func (p *Postgres) Update(ctx context.Context, id string, patch *models.TodoPatch) error {
	fields, err := json.Marshal(patch.Fields())
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE todos SET doc = doc || $2::jsonb WHERE id = $1`, id, fields,
	)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	p.notify(ctx)
	return nil
}

// Delete implements TodoStore.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	p.notify(ctx)
	return nil
}

// SharedWith implements TodoStore.
func (p *Postgres) SharedWith(ctx context.Context, userID string) ([]*models.Todo, error) {
	rows, err := p.db.QueryxContext(ctx,
		`SELECT id, doc FROM todos WHERE doc->'sharedWith' @> to_jsonb($1::text)`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query shared todos: %w", err)
	}
	defer rows.Close()

	var out []*models.Todo
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		t, err := decodeTodo(id, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Watch implements TodoStore. Each notification (and a periodic liveness poll)
// re-runs the filtered query and delivers a replacement snapshot.
func (p *Postgres) Watch(ctx context.Context, userID string) (*Subscription, error) {
	listener := pq.NewListener(p.dsn, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(todosChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", todosChannel, err)
	}

	ch := make(chan Snapshot, 1)
	done := make(chan struct{})
	sub := newSubscription(ch, func() { close(done) })

	go func() {
		defer close(ch)
		defer listener.Close()

		deliver := func() bool {
			todos, err := p.SharedWith(ctx, userID)
			if err != nil {
				sub.setErr(err)
				return false
			}
			// Replace a pending undelivered snapshot rather than queueing.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- Snapshot(todos):
				return true
			case <-done:
				return false
			case <-ctx.Done():
				return false
			}
		}

		if !deliver() {
			return
		}
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-listener.Notify:
				// The notification is nil after a connection reset; re-query
				// either way so a missed NOTIFY cannot strand a stale snapshot.
				if !deliver() {
					return
				}
			case <-time.After(90 * time.Second):
				if err := listener.Ping(); err != nil {
					sub.setErr(fmt.Errorf("subscription ping: %w", err))
					return
				}
			}
		}
	}()

	return sub, nil
}

func (p *Postgres) notify(ctx context.Context) {
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, '')`, todosChannel); err != nil {
		log.Printf("notify %s: %v", todosChannel, err)
	}
}

func decodeTodo(id string, doc []byte) (*models.Todo, error) {
	var t models.Todo
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("decode todo %s: %w", id, err)
	}
	t.ID = id
	return &t, nil
}

// GetUser implements UserStore.Get.
func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var doc []byte
	err := p.db.QueryRowxContext(ctx,
		`SELECT doc FROM users WHERE id = $1`, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return decodeUser(id, doc)
}

// GetUserByEmail implements UserStore.GetByEmail.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var id string
	var doc []byte
	err := p.db.QueryRowxContext(ctx,
		`SELECT id, doc FROM users WHERE doc->>'email' = $1 LIMIT 1`, email,
	).Scan(&id, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return decodeUser(id, doc)
}

// PutUser implements UserStore.Put.
func (p *Postgres) PutUser(ctx context.Context, user *models.User) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO users (id, doc) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`, user.ID, doc,
	); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateUser implements UserStore.Update.
func (p *Postgres) UpdateUser(ctx context.Context, id string, patch *models.UserPatch) error {
	fields, err := json.Marshal(patch.Fields())
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET doc = doc || $2::jsonb WHERE id = $1`, id, fields,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeUser(id string, doc []byte) (*models.User, error) {
	var u models.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	u.ID = id
	return &u, nil
}

// Users adapts the store to the UserStore interface.
func (p *Postgres) Users() UserStore { return postgresUsers{p} }

type postgresUsers struct{ p *Postgres }

func (s postgresUsers) Get(ctx context.Context, id string) (*models.User, error) {
	return s.p.GetUser(ctx, id)
}

func (s postgresUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.p.GetUserByEmail(ctx, email)
}

func (s postgresUsers) Put(ctx context.Context, user *models.User) error {
	return s.p.PutUser(ctx, user)
}

func (s postgresUsers) Update(ctx context.Context, id string, patch *models.UserPatch) error {
	return s.p.UpdateUser(ctx, id, patch)
}
