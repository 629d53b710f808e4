package emailauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultUsersDBName is the default for MongoUserStore database name.
	DefaultUsersDBName = "emailauth"
	// DefaultUsersCollectionName is the default for MongoUserStore collection name.
	DefaultUsersCollectionName = "users"
)

// MongoUserStore is a UserStore backed by MongoDB, accessed via the official
// mongo-go driver. The normalized email is the document _id, so the unique
// index on _id makes concurrent GetOrCreate calls duplicate-free.
type MongoUserStore struct {
	coll *mongo.Collection
}

// NewMongoUserStore returns a UserStore over the given client. Empty dbName
// or collName select the defaults. This function panics if client is nil.
func NewMongoUserStore(client *mongo.Client, dbName, collName string) *MongoUserStore {
	if client == nil {
		panic("mongo client must be provided")
	}
	if dbName == "" {
		dbName = DefaultUsersDBName
	}
	if collName == "" {
		collName = DefaultUsersCollectionName
	}
	return &MongoUserStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

// Get returns the user for the email without creating one.
func (s *MongoUserStore) Get(ctx context.Context, email string) (User, bool, error) {
	var user User
	err := s.coll.FindOne(ctx, bson.M{"_id": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return user, true, nil
}

// GetOrCreate upserts with $setOnInsert, so a racing create simply observes
// the document the winner inserted.
func (s *MongoUserStore) GetOrCreate(ctx context.Context, email string) (User, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        email,
			"created_at": time.Now().UTC(),
		},
	}

	var user User
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": email}, update, opts).Decode(&user)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return user, nil
}

// TouchLastLogin sets LastLogin to now; $max keeps it monotonic under
// concurrent touches. Touching an absent user matches nothing and is a no-op.
func (s *MongoUserStore) TouchLastLogin(ctx context.Context, email string) error {
	update := bson.M{
		"$max": bson.M{"last_login": time.Now().UTC()},
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": email}, update); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
