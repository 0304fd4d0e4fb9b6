package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"
)

type PromoRepository struct {
	coll *mongodriver.Collection
}

func (r *PromoRepository) Create(ctx context.Context, promo *model.PromoCode) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "CreatePromo")

	if promo.ID == "" {
		promo.ID = uuid.NewString()
	}
	if promo.Users == nil {
		// an absent array would never match {users: {$size: 0}}
		promo.Users = datatypes.JSONSlice[string]{}
	}
	now := time.Now().UTC()
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = now
	}
	promo.UpdatedAt = now

	start := time.Now()
	if _, err := r.coll.InsertOne(ctx, promo); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		logger.ErrorWithContext(ctx, "Failed to create promo code").
			String("code", promo.Code).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return fmt.Errorf("mongo insert promo: %w", err)
	}

	logger.DebugWithContext(ctx, "Promo code created").
		String("promo_id", promo.ID).
		String("code", promo.Code).
		Duration(time.Since(start)).
		Log()
	return nil
}

func (r *PromoRepository) findOne(ctx context.Context, filter bson.M) (*model.PromoCode, error) {
	var promo model.PromoCode
	if err := r.coll.FindOne(ctx, filter).Decode(&promo); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to load promo code").Err(err).Log()
		return nil, fmt.Errorf("mongo find promo: %w", err)
	}
	return &promo, nil
}

func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	return r.findOne(ctxutil.WithOperation(ctx, "repository", "FindPromoByCode"), bson.M{"code": code})
}

func (r *PromoRepository) FindByID(ctx context.Context, id string) (*model.PromoCode, error) {
	return r.findOne(ctxutil.WithOperation(ctx, "repository", "FindPromoByID"), bson.M{"_id": id})
}

func (r *PromoRepository) List(ctx context.Context) ([]model.PromoCode, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "ListPromos")

	start := time.Now()
	promos := []model.PromoCode{}
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err == nil {
		defer cur.Close(ctx)
		err = cur.All(ctx, &promos)
	}
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list promo codes").
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, fmt.Errorf("mongo find promos: %w", err)
	}
	return promos, nil
}

func (r *PromoRepository) Update(ctx context.Context, id string, update model.PromoUpdate) (*model.PromoCode, error) {
	if update.IsEmpty() {
		return r.FindByID(ctx, id)
	}
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdatePromo")

	set := bson.M{"updatedAt": time.Now().UTC()}
	filter := bson.M{"_id": id}
	if update.Code != nil {
		set["code"] = *update.Code
	}
	if update.Discount != nil {
		set["discount"] = *update.Discount
	}
	if update.MaxUses != nil {
		set["maxUses"] = *update.MaxUses
		filter["uses"] = bson.M{"$lte": *update.MaxUses}
	}
	if update.ExpiresAt != nil {
		set["expiresAt"] = *update.ExpiresAt
	}
	if update.Users != nil {
		users := *update.Users
		if users == nil {
			users = []string{}
		}
		set["users"] = users
	}

	start := time.Now()
	var promo model.PromoCode
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&promo)
	duration := time.Since(start)

	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicate
		}
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			if _, findErr := r.FindByID(ctx, id); findErr != nil {
				return nil, findErr
			}
			logger.WarnWithContext(ctx, "Promo update would drop max uses below uses").
				String("promo_id", id).
				Log()
			return nil, repository.ErrConflict
		}
		logger.ErrorWithContext(ctx, "Failed to update promo code").
			String("promo_id", id).
			Duration(duration).
			Err(err).
			Log()
		return nil, fmt.Errorf("mongo update promo: %w", err)
	}

	logger.DebugWithContext(ctx, "Promo code updated").
		String("promo_id", id).
		Duration(duration).
		Log()
	return &promo, nil
}

func (r *PromoRepository) Delete(ctx context.Context, id string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeletePromo")

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to delete promo code").
			String("promo_id", id).
			Err(err).
			Log()
		return fmt.Errorf("mongo delete promo: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Redeem increments uses only while the document still satisfies the cap,
// expiry and eligibility conditions.
func (r *PromoRepository) Redeem(ctx context.Context, code, userID string, now time.Time) (bool, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "RedeemPromo")

	filter := bson.M{
		"code":      code,
		"$expr":     bson.M{"$lt": bson.A{"$uses", "$maxUses"}},
		"expiresAt": bson.M{"$gt": now},
		"$or": bson.A{
			bson.M{"users": bson.M{"$size": 0}},
			bson.M{"users": userID},
		},
	}
	update := bson.M{
		"$inc": bson.M{"uses": 1},
		"$set": bson.M{"updatedAt": now},
	}

	start := time.Now()
	res, err := r.coll.UpdateOne(ctx, filter, update)
	duration := time.Since(start)

	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to redeem promo code").
			String("code", code).
			Duration(duration).
			Err(err).
			Log()
		return false, fmt.Errorf("mongo redeem promo: %w", err)
	}

	logger.DebugWithContext(ctx, "Promo redeem attempted").
		String("code", code).
		Bool("applied", res.ModifiedCount == 1).
		Duration(duration).
		Log()
	return res.ModifiedCount == 1, nil
}
