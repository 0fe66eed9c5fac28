package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nerdsphere/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)

type repositoryFactory func(t *testing.T) IMessageRepository

func factories() map[string]repositoryFactory {
	all := map[string]repositoryFactory{
		"badger": func(t *testing.T) IMessageRepository { return newBadgerRepository(t, 0) },
		"sqlite": newSQLiteRepository,
	}
	if os.Getenv("MONGODB_URI") != "" {
		all["mongo"] = newMongoRepository
	}
	return all
}

func newBadgerRepository(t *testing.T, ttl time.Duration) BadgerMessageRepository {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerMessageRepository(db, slog.Default(), ttl)
}

func newSQLiteRepository(t *testing.T) IMessageRepository {
	req := require.New(t)
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "messages.db"))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteMessageRepository(db, slog.Default())
}

func newMongoRepository(t *testing.T) IMessageRepository {
	req := require.New(t)
	ctx := context.Background()
	client, err := ConnectMongo(ctx, os.Getenv("MONGODB_URI"), 5*time.Second)
	req.NoError(err)
	db := client.Database("nerdsphere_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	repository := NewMongoMessageRepository(db, slog.Default())
	req.NoError(repository.EnsureIndexes(ctx, 0))
	return repository
}

func message(fingerprint string, at time.Time) domain.Message {
	return domain.Message{
		ID:          uuid.NewString(),
		Content:     fmt.Sprintf("posted by %s at %s", fingerprint, at.Format(time.TimeOnly)),
		CreatedAt:   at,
		Fingerprint: fingerprint,
	}
}

func TestMessageRepository_Store_And_Get_Sorted_Messages(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repository := factory(t)

			messages := []domain.Message{
				message("alice", base),
				message("bob", base.Add(2*time.Minute)),
				message("clara", base.Add(1*time.Minute)),
			}
			for _, m := range messages {
				stored, err := repository.StoreMessage(ctx, m)
				req.NoError(err)
				req.Equal(m, stored)
			}

			// When fetching messages
			fetched, err := repository.GetMessages(ctx, 100)
			req.NoError(err)

			// Then the newest comes first
			req.Equal([]domain.Message{messages[1], messages[2], messages[0]}, fetched)
		})
	}
}

func TestMessageRepository_Get_Messages_And_Limit(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repository := factory(t)

			for i := 1; i <= 5; i++ {
				_, err := repository.StoreMessage(ctx, message(fmt.Sprintf("user_%d", i), base.Add(time.Duration(i)*time.Second)))
				req.NoError(err)
			}

			fetched, err := repository.GetMessages(ctx, 2)
			req.NoError(err)
			req.Len(fetched, 2)
			req.Equal("user_5", fetched[0].Fingerprint)
			req.Equal("user_4", fetched[1].Fingerprint)

			empty, err := repository.GetMessages(ctx, 0)
			req.NoError(err)
			req.Empty(empty)
		})
	}
}

func TestMessageRepository_Last_Message_At(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repository := factory(t)

			// Given nothing posted yet
			last, err := repository.LastMessageAt(ctx, "alice")
			req.NoError(err)
			req.Nil(last)

			for _, m := range []domain.Message{
				message("alice", base),
				message("alice", base.Add(30*time.Second)),
				message("alice", base.Add(10*time.Second)),
				message("bob", base.Add(time.Hour)),
				// Shares alice's prefix when keys are not escaped
				message("alice:evil", base.Add(2*time.Hour)),
			} {
				_, err := repository.StoreMessage(ctx, m)
				req.NoError(err)
			}

			// Then the newest of alice is returned whatever the insertion order
			last, err = repository.LastMessageAt(ctx, "alice")
			req.NoError(err)
			req.NotNil(last)
			req.True(base.Add(30*time.Second).Equal(*last), "last=%s", last)

			last, err = repository.LastMessageAt(ctx, "bob")
			req.NoError(err)
			req.NotNil(last)
			req.True(base.Add(time.Hour).Equal(*last))
		})
	}
}

func TestMessageRepository_Delete_Older_Than(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repository := factory(t)
			now := base.Add(48 * time.Hour)
			cutoff := now.Add(-domain.RetentionHorizon)

			old := message("alice", now.Add(-25*time.Hour))
			borderline := message("bob", cutoff)
			fresh := message("alice", now.Add(-1*time.Hour))
			for _, m := range []domain.Message{old, borderline, fresh} {
				_, err := repository.StoreMessage(ctx, m)
				req.NoError(err)
			}

			// When sweeping
			deleted, err := repository.DeleteOlderThan(ctx, cutoff)
			req.NoError(err)

			// Then only the message strictly older than the cutoff is gone
			req.Equal(1, deleted)
			fetched, err := repository.GetMessages(ctx, 100)
			req.NoError(err)
			req.Equal([]domain.Message{fresh, borderline}, fetched)

			// And a second pass has nothing left to delete
			deleted, err = repository.DeleteOlderThan(ctx, cutoff)
			req.NoError(err)
			req.Zero(deleted)
		})
	}
}

func TestMessageRepository_Ping(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			req.NoError(factory(t).Ping(context.Background()))
		})
	}
}

func TestBadgerMessageRepository_Sweep_Removes_Fingerprint_Index(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newBadgerRepository(t, 0)

	_, err := repository.StoreMessage(ctx, message("alice", base))
	req.NoError(err)

	deleted, err := repository.DeleteOlderThan(ctx, base.Add(time.Second))
	req.NoError(err)
	req.Equal(1, deleted)

	last, err := repository.LastMessageAt(ctx, "alice")
	req.NoError(err)
	req.Nil(last)
}

func TestBadgerMessageRepository_Native_TTL(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newBadgerRepository(t, domain.RetentionHorizon)
	now := time.Now().UTC()

	expired := message("alice", now.Add(-25*time.Hour))
	alive := message("alice", now.Add(-1*time.Hour))
	for _, m := range []domain.Message{expired, alive} {
		_, err := repository.StoreMessage(ctx, m)
		req.NoError(err)
	}

	// Then Badger hides the expired message without any sweep
	fetched, err := repository.GetMessages(ctx, 100)
	req.NoError(err)
	req.Equal([]domain.Message{alive}, fetched)

	last, err := repository.LastMessageAt(ctx, "alice")
	req.NoError(err)
	req.True(alive.CreatedAt.Equal(*last))
}

func TestBadgerMessageRepository_Canceled_Context(t *testing.T) {
	req := require.New(t)
	repository := newBadgerRepository(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repository.StoreMessage(ctx, message("alice", base))
	req.ErrorIs(err, context.Canceled)

	_, err = repository.LastMessageAt(ctx, "alice")
	req.ErrorIs(err, context.Canceled)
}

func TestExpiryOf_Never_Before_Horizon(t *testing.T) {
	tests := []struct {
		name      string
		createdAt time.Time
		expected  int64
	}{
		{"Whole second", base, base.Add(domain.RetentionHorizon).Unix()},
		{"Sub second rounds up", base.Add(300 * time.Millisecond), base.Add(domain.RetentionHorizon).Unix() + 1},
		{"Last nanosecond rounds up", base.Add(time.Second - 1), base.Add(domain.RetentionHorizon).Unix() + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			expiry := expiryOf(tt.createdAt, domain.RetentionHorizon)
			req.Equal(uint64(tt.expected), expiry)
			// Badger drops an entry once now >= ExpiresAt, which must not precede created_at + 24h
			req.False(time.Unix(int64(expiry), 0).Before(tt.createdAt.Add(domain.RetentionHorizon)))
		})
	}
}
