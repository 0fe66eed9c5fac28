package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"nerdsphere/domain"

	// Registers the "sqlite3" driver
	_ "github.com/mattn/go-sqlite3"
)

// created_at is stored as unix nanoseconds so ordering and the age predicate
// are plain integer comparisons.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id               TEXT PRIMARY KEY,
		content          TEXT NOT NULL CHECK (length(content) BETWEEN 1 AND 500),
		created_at       INTEGER NOT NULL,
		user_fingerprint TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_fingerprint_created_at ON messages(user_fingerprint, created_at)`,
}

// OpenSQLite opens the database file with WAL journaling and a busy timeout
// and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	if err := MigrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	for _, statement := range sqliteSchema {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
	}
	return nil
}

type SQLiteMessageRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSQLiteMessageRepository(db *sql.DB, log *slog.Logger) SQLiteMessageRepository {
	return SQLiteMessageRepository{db: db, log: log}
}

func (r SQLiteMessageRepository) StoreMessage(ctx context.Context, message domain.Message) (domain.Message, error) {
	message.CreatedAt = message.CreatedAt.UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, content, created_at, user_fingerprint) VALUES (?, ?, ?, ?)`,
		message.ID, message.Content, message.CreatedAt.UnixNano(), message.Fingerprint,
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message %s: %w", message.ID, err)
	}
	r.log.Debug("Message stored", "id", message.ID, "fingerprint", message.Fingerprint)
	return message, nil
}

func (r SQLiteMessageRepository) LastMessageAt(ctx context.Context, fingerprint string) (*time.Time, error) {
	var nanos int64
	err := r.db.QueryRowContext(ctx,
		`SELECT created_at FROM messages WHERE user_fingerprint = ? ORDER BY created_at DESC LIMIT 1`,
		fingerprint,
	).Scan(&nanos)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last message of %s: %w", fingerprint, err)
	}
	at := time.Unix(0, nanos).UTC()
	return &at, nil
}

func (r SQLiteMessageRepository) GetMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	messages := []domain.Message{}
	if limit <= 0 {
		return messages, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, content, created_at, user_fingerprint FROM messages ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var message domain.Message
		var nanos int64
		if err := rows.Scan(&message.ID, &message.Content, &nanos, &message.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		message.CreatedAt = time.Unix(0, nanos).UTC()
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// DeleteOlderThan is a single statement, the age predicate is evaluated by SQLite.
func (r SQLiteMessageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count expired messages: %w", err)
	}
	return int(affected), nil
}

func (r SQLiteMessageRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
