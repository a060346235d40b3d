package audit

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no entry matches the given id.
var ErrNotFound = errors.New("audit: entry not found")

// collectionName is the activity log collection in the gateway database.
const collectionName = "user_logs"

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Filter controls which entries List returns.
type Filter struct {
	// UserNo restricts entries to one account when non-zero.
	UserNo int
	// Activity restricts entries to one activity name when non-empty.
	Activity string
	// Limit caps the result size. Zero means the default; values above
	// the maximum are clamped.
	Limit int
	// Skip drops that many entries before the limit applies.
	Skip int
}

// Repository defines the interface for activity log persistence.
type Repository interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	GetByID(ctx context.Context, id string) (Entry, error)
}

// MongoRepository implements Repository against the document store.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates an activity log repository on the given
// database.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

// Record inserts one entry.
func (r *MongoRepository) Record(ctx context.Context, entry Entry) error {
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (r *MongoRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := bson.M{}
	if filter.UserNo != 0 {
		query["user_no"] = filter.UserNo
	}
	if filter.Activity != "" {
		query["activity"] = filter.Activity
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))
	if filter.Skip > 0 {
		opts = opts.SetSkip(int64(filter.Skip))
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding audit entries: %w", err)
	}
	return entries, nil
}

// GetByID returns the entry with the given id.
func (r *MongoRepository) GetByID(ctx context.Context, id string) (Entry, error) {
	var entry Entry
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("getting audit entry: %w", err)
	}
	return entry, nil
}
