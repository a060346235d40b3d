package user

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// collectionName is the account collection in the gateway database.
const collectionName = "user"

// Repository defines the interface for account persistence.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByNo(ctx context.Context, no int) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, no int) error
}

// MongoRepository implements Repository against the document store.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates an account repository on the given database.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

// GetByEmail retrieves an account by email address.
func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: email %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return &u, nil
}

// GetByNo retrieves an account by its sequential number.
func (r *MongoRepository) GetByNo(ctx context.Context, no int) (*User, error) {
	var u User
	err := r.coll.FindOne(ctx, bson.M{"no": no}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: no %d", ErrNotFound, no)
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by no: %w", err)
	}
	return &u, nil
}

// List returns all accounts ordered by number.
func (r *MongoRepository) List(ctx context.Context) ([]User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"no": 1}))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	return users, nil
}

// Create inserts a new account. A zero No is assigned the next number in
// sequence. The email address must be unused.
func (r *MongoRepository) Create(ctx context.Context, u *User) error {
	err := r.coll.FindOne(ctx, bson.M{"email": u.Email}).Err()
	if err == nil {
		return fmt.Errorf("%w: %s", ErrEmailExists, u.Email)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("checking email: %w", err)
	}

	if u.No == 0 {
		no, err := r.nextNo(ctx)
		if err != nil {
			return err
		}
		u.No = no
	}

	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// nextNo returns one past the highest assigned account number.
func (r *MongoRepository) nextNo(ctx context.Context) (int, error) {
	var last User
	err := r.coll.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.M{"no": -1})).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("finding last user no: %w", err)
	}
	return last.No + 1, nil
}

// Update replaces an account document, matched by number.
func (r *MongoRepository) Update(ctx context.Context, u *User) error {
	result, err := r.coll.ReplaceOne(ctx, bson.M{"no": u.No}, u)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: no %d", ErrNotFound, u.No)
	}
	return nil
}

// Delete removes an account by number.
func (r *MongoRepository) Delete(ctx context.Context, no int) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"no": no})
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: no %d", ErrNotFound, no)
	}
	return nil
}
