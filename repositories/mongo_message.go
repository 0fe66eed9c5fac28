package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"nerdsphere/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	messagesCollection = "messages"
	createdAtIndex     = "idx_created_at"
	fingerprintIndex   = "idx_fingerprint_created_at"
	namespaceNotFound  = 26
)

type mongoMessage struct {
	ID          string    `bson:"_id"`
	Content     string    `bson:"content"`
	CreatedAt   time.Time `bson:"created_at"`
	Fingerprint string    `bson:"user_fingerprint"`
}

// ConnectMongo connects and pings within timeout.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

type MongoMessageRepository struct {
	collection *mongo.Collection
	log        *slog.Logger
}

func NewMongoMessageRepository(db *mongo.Database, log *slog.Logger) MongoMessageRepository {
	return MongoMessageRepository{collection: db.Collection(messagesCollection), log: log}
}

// EnsureIndexes creates the created_at and fingerprint indexes.
// With a positive ttl the created_at index is a TTL index and MongoDB
// expires messages on its own between sweeps.
// An existing created_at index whose TTL differs from ttl (NATIVE_TTL toggled
// between runs) is dropped first, MongoDB refuses to change index options in place.
func (r MongoMessageRepository) EnsureIndexes(ctx context.Context, ttl time.Duration) error {
	createdAt := options.Index().SetName(createdAtIndex)
	expireAfter := int64(ttl / time.Second)
	if ttl > 0 {
		createdAt = createdAt.SetExpireAfterSeconds(int32(expireAfter))
	}
	if err := r.dropStaleCreatedAtIndex(ctx, expireAfter); err != nil {
		return err
	}
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: createdAt},
		{
			Keys:    bson.D{{Key: "user_fingerprint", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName(fingerprintIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create mongodb indexes: %w", err)
	}
	return nil
}

func (r MongoMessageRepository) dropStaleCreatedAtIndex(ctx context.Context, expireAfter int64) error {
	cursor, err := r.collection.Indexes().List(ctx)
	var commandErr mongo.CommandError
	if stderrors.As(err, &commandErr) && commandErr.Code == namespaceNotFound {
		// First run, the collection does not exist yet
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list mongodb indexes: %w", err)
	}
	var specs []bson.M
	if err := cursor.All(ctx, &specs); err != nil {
		return fmt.Errorf("failed to decode mongodb indexes: %w", err)
	}
	for _, spec := range specs {
		if spec["name"] != createdAtIndex {
			continue
		}
		current, _ := expireAfterSeconds(spec)
		if current == expireAfter {
			return nil
		}
		r.log.Info("Recreating created_at index with new TTL", "from_seconds", current, "to_seconds", expireAfter)
		if _, err := r.collection.Indexes().DropOne(ctx, createdAtIndex); err != nil {
			return fmt.Errorf("failed to drop mongodb index %s: %w", createdAtIndex, err)
		}
		return nil
	}
	return nil
}

// expireAfterSeconds reads the TTL of an index spec, 0 when it has none.
// The server may answer with any numeric BSON type.
func expireAfterSeconds(spec bson.M) (int64, bool) {
	switch v := spec["expireAfterSeconds"].(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// StoreMessage truncates created_at to milliseconds, the BSON date precision,
// so the returned record equals what a later read gives back.
func (r MongoMessageRepository) StoreMessage(ctx context.Context, message domain.Message) (domain.Message, error) {
	message.CreatedAt = message.CreatedAt.UTC().Truncate(time.Millisecond)
	_, err := r.collection.InsertOne(ctx, mongoMessage{
		ID:          message.ID,
		Content:     message.Content,
		CreatedAt:   message.CreatedAt,
		Fingerprint: message.Fingerprint,
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message %s: %w", message.ID, err)
	}
	r.log.Debug("Message stored", "id", message.ID, "fingerprint", message.Fingerprint)
	return message, nil
}

func (r MongoMessageRepository) LastMessageAt(ctx context.Context, fingerprint string) (*time.Time, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.D{{Key: "created_at", Value: 1}})

	var doc mongoMessage
	err := r.collection.FindOne(ctx, bson.D{{Key: "user_fingerprint", Value: fingerprint}}, opts).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last message of %s: %w", fingerprint, err)
	}
	at := doc.CreatedAt.UTC()
	return &at, nil
}

func (r MongoMessageRepository) GetMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	messages := []domain.Message{}
	if limit <= 0 {
		return messages, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoMessage
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	for _, doc := range docs {
		messages = append(messages, domain.Message{
			ID:          doc.ID,
			Content:     doc.Content,
			CreatedAt:   doc.CreatedAt.UTC(),
			Fingerprint: doc.Fingerprint,
		})
	}
	return messages, nil
}

func (r MongoMessageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.collection.DeleteMany(ctx, bson.D{{Key: "created_at", Value: bson.D{{Key: "$lt", Value: cutoff.UTC()}}}})
	if err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	return int(result.DeletedCount), nil
}

func (r MongoMessageRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}
