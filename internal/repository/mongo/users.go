package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository stores users with their refresh tokens embedded
type UserRepository struct {
	coll *mongodriver.Collection
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "CreateUser")

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.RefreshTokens == nil {
		// $push needs an array, not a missing or null field
		user.RefreshTokens = []model.RefreshToken{}
	}

	start := time.Now()
	_, err := r.coll.InsertOne(ctx, user)
	duration := time.Since(start)

	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Duration(duration).
			Err(err).
			Log()
		return fmt.Errorf("mongo insert user: %w", err)
	}

	logger.DebugWithContext(ctx, "User created").
		String("user_id", user.ID).
		Duration(duration).
		Log()
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	start := time.Now()
	var user model.User

	err := r.coll.FindOne(ctx, filter).Decode(&user)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to load user").
			Duration(duration).
			Err(err).
			Log()
		return nil, fmt.Errorf("mongo find user: %w", err)
	}

	logger.DebugWithContext(ctx, "User loaded").
		String("user_id", user.ID).
		Int("refresh_tokens", len(user.RefreshTokens)).
		Duration(duration).
		Log()
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctxutil.WithOperation(ctx, "repository", "FindByEmail"), bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctxutil.WithOperation(ctx, "repository", "FindByID"), bson.M{"_id": id})
}

func (r *UserRepository) List(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "ListUsers")
	start := time.Now()

	filter := bson.M{}
	if search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
		filter["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to count users").Err(err).Log()
		return nil, 0, fmt.Errorf("mongo count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	users := make([]model.User, 0, limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err == nil {
		defer cur.Close(ctx)
		err = cur.All(ctx, &users)
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to fetch users").
			Int("limit", limit).
			Int("offset", offset).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, 0, fmt.Errorf("mongo find users: %w", err)
	}

	logger.DebugWithContext(ctx, "Users listed").
		Int("count", len(users)).
		Int64("total", total).
		Duration(time.Since(start)).
		Log()
	return users, total, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, update model.UserUpdate) (*model.User, error) {
	if update.IsEmpty() {
		return r.FindByID(ctx, id)
	}
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateUser")

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.Password != nil {
		set["password"] = *update.Password
	}
	if update.IsAdmin != nil {
		set["isAdmin"] = *update.IsAdmin
	}

	start := time.Now()
	var user model.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicate
		}
		logger.ErrorWithContext(ctx, "Failed to update user").
			String("user_id", id).
			Duration(duration).
			Err(err).
			Log()
		return nil, fmt.Errorf("mongo update user: %w", err)
	}

	logger.DebugWithContext(ctx, "User updated").
		String("user_id", id).
		Duration(duration).
		Log()
	return &user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeleteUser")

	start := time.Now()
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to delete user").
			String("user_id", id).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return fmt.Errorf("mongo delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}

	logger.InfoWithContext(ctx, "User deleted").String("user_id", id).Log()
	return nil
}

// AppendRefreshToken pushes the record and trims to the newest keep entries
// in a single document update.
func (r *UserRepository) AppendRefreshToken(ctx context.Context, userID string, record model.RefreshToken, keep int) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "AppendRefreshToken")

	start := time.Now()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"refreshTokens": bson.M{
			"$each":  bson.A{record},
			"$slice": -keep,
		}}},
	)
	duration := time.Since(start)

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to append refresh token").
			String("user_id", userID).
			Duration(duration).
			Err(err).
			Log()
		return fmt.Errorf("mongo push refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}

	logger.DebugWithContext(ctx, "Refresh token appended").
		String("user_id", userID).
		Int("keep", keep).
		Duration(duration).
		Log()
	return nil
}

func (r *UserRepository) RemoveRefreshToken(ctx context.Context, userID, token string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "RemoveRefreshToken")

	start := time.Now()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"refreshTokens": bson.M{"token": token}}},
	)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to remove refresh token").
			String("user_id", userID).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return fmt.Errorf("mongo pull refresh token: %w", err)
	}

	logger.DebugWithContext(ctx, "Refresh token removed").
		String("user_id", userID).
		Int64("removed", res.ModifiedCount).
		Log()
	return nil
}

func (r *UserRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "ClearRefreshTokens")

	start := time.Now()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"refreshTokens": bson.A{}}},
	)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to clear refresh tokens").
			String("user_id", userID).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return fmt.Errorf("mongo clear refresh tokens: %w", err)
	}

	logger.InfoWithContext(ctx, "Refresh tokens cleared").String("user_id", userID).Log()
	return nil
}
