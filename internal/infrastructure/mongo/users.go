package mongoinfra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-accounts-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	emailIndex    = "email_1"
	usernameIndex = "username_1"
)

type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// UserRepo stores users in a MongoDB collection with unique email and
// username indexes.
type UserRepo struct {
	coll collection
	now  func() time.Time
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return newUserRepo(db.Collection(usersCollection))
}

func newUserRepo(coll collection) *UserRepo {
	return &UserRepo{coll: coll, now: time.Now}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.coll.InsertOne(ctx, u)
	if err == nil {
		return nil
	}
	if taken := duplicateField(err); taken != nil {
		return taken
	}
	return fmt.Errorf("insert user: %w", err)
}

// duplicateField maps a duplicate-key error to the reason for the index that
// rejected the write. It returns nil for any other error.
func duplicateField(err error) error {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return nil
	}
	for _, e := range we.WriteErrors {
		if e.Code != 11000 {
			continue
		}
		switch {
		case strings.Contains(e.Message, emailIndex):
			return domain.ErrEmailTaken
		case strings.Contains(e.Message, usernameIndex):
			return domain.ErrUsernameTaken
		}
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": userID})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// Update applies a partial $set and refreshes updated_at.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return errors.New("no fields to update")
	}
	set := bson.M{"updated_at": r.now().UTC()}
	for k, v := range updates {
		set[k] = v
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
