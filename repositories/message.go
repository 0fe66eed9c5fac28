//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"nerdsphere/domain"

	"github.com/dgraph-io/badger/v4"
)

// IMessageRepository is everything the chat core needs from storage.
type IMessageRepository interface {
	// StoreMessage inserts message and returns the canonical stored record.
	StoreMessage(ctx context.Context, message domain.Message) (domain.Message, error)
	// LastMessageAt returns the created_at of the newest message of fingerprint, nil if none.
	LastMessageAt(ctx context.Context, fingerprint string) (*time.Time, error)
	// GetMessages returns up to limit messages, newest first.
	GetMessages(ctx context.Context, limit int) ([]domain.Message, error)
	// DeleteOlderThan removes every message created strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Ping(ctx context.Context) error
}

// MessageKeyPrefix starts every message record key, FingerprintKeyPrefix every index key.
const (
	MessageKeyPrefix     = messagePrefix
	FingerprintKeyPrefix = fingerprintPrefix
)

const (
	messagePrefix     = "msg:"
	fingerprintPrefix = "fp:"
	tsWidth           = 19
)

type BadgerMessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	// ttl, when positive, is written as ExpiresAt = created_at + ttl so that
	// Badger drops expired messages by itself between sweeps.
	ttl time.Duration
}

func NewBadgerMessageRepository(db *badger.DB, log *slog.Logger, ttl time.Duration) BadgerMessageRepository {
	return BadgerMessageRepository{db: db, log: log, ttl: ttl}
}

// StoreMessage persists a message and its fingerprint index entry in one transaction.
// Keys are formatted as:
//
//	msg:{unixnano_padded}:{id}
//	fp:{hex(fingerprint)}:{unixnano_padded}:{id}
//
// The 19-digit padding keeps lexicographical order chronological, the id
// disambiguates two messages written in the same nanosecond.
func (r BadgerMessageRepository) StoreMessage(ctx context.Context, message domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	message.CreatedAt = message.CreatedAt.UTC()
	value := encodeMessage(message)

	err := r.db.Update(func(txn *badger.Txn) error {
		msgEntry := badger.NewEntry(messageKey(message), value)
		idxEntry := badger.NewEntry(fingerprintKey(message), nil)
		if r.ttl > 0 {
			expiresAt := expiryOf(message.CreatedAt, r.ttl)
			msgEntry.ExpiresAt = expiresAt
			idxEntry.ExpiresAt = expiresAt
		}
		if err := txn.SetEntry(msgEntry); err != nil {
			return err
		}
		return txn.SetEntry(idxEntry)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message %s: %w", message.ID, err)
	}
	r.log.Debug("Message stored", "id", message.ID, "fingerprint", message.Fingerprint)
	return message, nil
}

// LastMessageAt seeks to the end of the fingerprint index and walks backwards once.
// Only keys are read, the timestamp is part of the key.
func (r BadgerMessageRepository) LastMessageAt(ctx context.Context, fingerprint string) (*time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := fingerprintIndexPrefix(fingerprint)
	var last *time.Time
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(append([]byte{}, prefix...), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		at, err := parseTimestamp(it.Item().Key()[len(prefix):])
		if err != nil {
			return err
		}
		last = &at
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("last message of %s: %w", fingerprint, err)
	}
	return last, nil
}

// GetMessages scans the message keys in reverse, stopping once limit is reached.
func (r BadgerMessageRepository) GetMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	prefix := []byte(messagePrefix)
	messages := make([]domain.Message, 0, limit)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return messages, nil
}

// DeleteOlderThan walks message keys from the oldest and stops at the first key
// not older than cutoff. Keys are collected from one snapshot, so a message
// written during the pass is never part of the batch.
func (r BadgerMessageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	prefix := []byte(messagePrefix)
	limit := cutoff.UnixNano()
	var keys [][]byte
	deleted := 0

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			at, err := parseTimestamp(item.Key()[len(prefix):])
			if err != nil {
				return err
			}
			if at.UnixNano() >= limit {
				break
			}
			err = item.Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				keys = append(keys, item.KeyCopy(nil), fingerprintKey(message))
				return nil
			})
			if err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan expired messages: %w", err)
	}
	if deleted == 0 {
		return 0, nil
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete expired messages: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush expired messages: %w", err)
	}
	return deleted, nil
}

func (r BadgerMessageRepository) Ping(ctx context.Context) error {
	if r.db.IsClosed() {
		return fmt.Errorf("badger is closed")
	}
	return ctx.Err()
}

// expiryOf rounds created_at + ttl up to the next whole second, Badger
// expiry has second precision and must never fire before the horizon.
func expiryOf(createdAt time.Time, ttl time.Duration) uint64 {
	at := createdAt.Add(ttl)
	seconds := at.Unix()
	if at.Nanosecond() > 0 {
		seconds++
	}
	return uint64(seconds)
}

func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%0*d:%s", messagePrefix, tsWidth, message.CreatedAt.UnixNano(), message.ID))
}

// The fingerprint is hex encoded so that a ':' inside it can never
// make one fingerprint's prefix match another's.
func fingerprintIndexPrefix(fingerprint string) []byte {
	return []byte(fingerprintPrefix + hex.EncodeToString([]byte(fingerprint)) + ":")
}

func fingerprintKey(message domain.Message) []byte {
	prefix := fingerprintIndexPrefix(message.Fingerprint)
	return append(prefix, []byte(fmt.Sprintf("%0*d:%s", tsWidth, message.CreatedAt.UnixNano(), message.ID))...)
}

// parseTimestamp reads the padded timestamp at the start of a key suffix.
func parseTimestamp(suffix []byte) (time.Time, error) {
	if len(suffix) < tsWidth {
		return time.Time{}, fmt.Errorf("malformed key suffix %q", suffix)
	}
	nanos, err := strconv.ParseInt(string(suffix[:tsWidth]), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed key timestamp %q: %w", suffix[:tsWidth], err)
	}
	return time.Unix(0, nanos).UTC(), nil
}
