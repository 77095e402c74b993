package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

const (
	accountsCollection = "accounts"
	emailIndex         = "accounts_email_key"
	usernameIndex      = "accounts_username_key"
)

type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(accountsCollection)}
}

type mongoAccount struct {
	ID           primitive.ObjectID `bson:"_id"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// EnsureIndexes creates the unique indexes that back username and email
// uniqueness. Create relies on them to reject duplicates atomically.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName(usernameIndex).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(emailIndex).SetUnique(true),
		},
	}

	_, err := s.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *UserStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	c := account.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	doc := mongoAccount{
		ID:           primitive.NewObjectID(),
		Username:     c.Username,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		CreatedAt:    bsonTime(c.CreatedAt),
		UpdatedAt:    bsonTime(c.UpdatedAt),
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicateKeyError(err)
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return toDomain(doc), nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"password_hash": hash,
			"updated_at":    bsonTime(time.Now()),
		}},
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Ping backs the readiness probe.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc mongoAccount
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return toDomain(doc), nil
}

// duplicateKeyError names the violated index in its message; that is the only
// place the driver reports which field collided.
func duplicateKeyError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, emailIndex):
		return domain.ErrEmailAlreadyRegistered
	case strings.Contains(msg, usernameIndex):
		return domain.ErrUsernameTaken
	default:
		return fmt.Errorf("insert account: %w", err)
	}
}

func toDomain(doc mongoAccount) *domain.Account {
	return &domain.Account{
		ID:           doc.ID.Hex(),
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
	}
}

// bsonTime rounds to the millisecond a BSON datetime can hold, so the account
// returned by Create matches what a later read decodes.
func bsonTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
