// Package mongo implements the credential store on top of a MongoDB
// collection where each user document embeds its books.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/bookshelf/internal/database"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ database.DB = (*Store)(nil)

const usersCollection = "users"

// Store is a database.DB backed by MongoDB.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
}

// New connects to the server, verifies the connection and ensures the indexes exist.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := &Store{
		client: client,
		users:  client.Database(dbName).Collection(usersCollection),
	}
	if err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Migrate creates the unique email index.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*database.User, error) {
	var doc userDocument
	err := s.users.FindOne(ctx, byEmail(email)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrUserNotFound
		}
		log.Error("failed to get user by email", "error", err)
		return nil, err
	}
	return doc.toUser(), nil
}

func (s *Store) InsertUser(ctx context.Context, user *database.User) (*database.User, error) {
	now := time.Now().UTC()
	doc := newUserDocument(user)
	doc.CreatedAt = now
	doc.UpdatedAt = now

	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, database.ErrDuplicateEmail
		}
		log.Error("failed to create user", "error", err)
		return nil, err
	}
	if id, ok := res.InsertedID.(bson.ObjectID); ok {
		doc.ID = id
	}
	return doc.toUser(), nil
}

// UpdateBooks applies the mutation with a single update operator on the user document.
func (s *Store) UpdateBooks(ctx context.Context, email string, mutation database.BookMutation) (*database.User, error) {
	filter := byEmail(email)
	now := time.Now().UTC()

	var update bson.D
	switch m := mutation.(type) {
	case database.AppendBook:
		update = bson.D{
			{Key: "$push", Value: bson.D{{Key: "books", Value: newBookDocument(m.Book.ID, m.Book.BookFields)}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
		}

	case database.ReplaceBook:
		filter = append(filter, bson.E{Key: "books.id", Value: m.ID})
		set := positionalSet(m.Fields)
		set = append(set, bson.E{Key: "updated_at", Value: now})
		update = bson.D{{Key: "$set", Value: set}}

	case database.RemoveBook:
		update = bson.D{
			{Key: "$pull", Value: bson.D{{Key: "books", Value: bson.D{{Key: "id", Value: m.ID}}}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
		}

	default:
		return nil, fmt.Errorf("unsupported book mutation %T", mutation)
	}

	var doc userDocument
	err := s.users.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.missingTarget(ctx, email, mutation)
		}
		log.Error("failed to update books", "error", err)
		return nil, err
	}
	return doc.toUser(), nil
}

// missingTarget tells an unknown user apart from an unknown book after a
// filtered update matched nothing.
func (s *Store) missingTarget(ctx context.Context, email string, mutation database.BookMutation) error {
	if _, ok := mutation.(database.ReplaceBook); !ok {
		return database.ErrUserNotFound
	}
	n, err := s.users.CountDocuments(ctx, byEmail(email))
	if err != nil {
		log.Error("failed to count users", "error", err)
		return err
	}
	if n == 0 {
		return database.ErrUserNotFound
	}
	return database.ErrBookNotFound
}

func (s *Store) ReferencedImages(ctx context.Context) ([]string, error) {
	var images []string
	res := s.users.Distinct(ctx, "books.img", bson.D{})
	if err := res.Decode(&images); err != nil {
		log.Error("failed to list referenced images", "error", err)
		return nil, err
	}
	return lo.Compact(images), nil
}

func byEmail(email string) bson.D {
	return bson.D{{Key: "email", Value: database.NormalizeEmail(email)}}
}

// positionalSet builds the $set document updating the first matched book.
func positionalSet(f database.BookFields) bson.D {
	return bson.D{
		{Key: "books.$.name", Value: f.Name},
		{Key: "books.$.author", Value: f.Author},
		{Key: "books.$.isbn", Value: f.ISBN},
		{Key: "books.$.date", Value: f.Date},
		{Key: "books.$.rating", Value: f.Rating},
		{Key: "books.$.link", Value: f.Link},
		{Key: "books.$.summary", Value: f.Summary},
		{Key: "books.$.notes", Value: f.Notes},
		{Key: "books.$.img", Value: f.Img},
	}
}
