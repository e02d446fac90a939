package availability

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository persists weekly rules and blocked dates. It holds no cache.
type Repository interface {
	ListRules(ctx context.Context) ([]Rule, error)
	ActiveRulesForDay(ctx context.Context, dayOfWeek int) ([]Rule, error)
	GetRule(ctx context.Context, id string) (Rule, error)
	CreateRule(ctx context.Context, rule Rule) error
	ReplaceRule(ctx context.Context, rule Rule) error
	DeleteRule(ctx context.Context, id string) error

	IsDateBlocked(ctx context.Context, date string) (bool, error)
	ListBlockedDates(ctx context.Context, from string) ([]BlockedDate, error)
	CreateBlockedDate(ctx context.Context, blocked BlockedDate) error
	DeleteBlockedDate(ctx context.Context, id string) (BlockedDate, error)
}

type MongoRepository struct {
	rules   *mongo.Collection
	blocked *mongo.Collection
}

func NewRepository(rules, blocked *mongo.Collection) *MongoRepository {
	return &MongoRepository{rules: rules, blocked: blocked}
}

func (r *MongoRepository) ListRules(ctx context.Context) ([]Rule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dayOfWeek", Value: 1}, {Key: "startTime", Value: 1}})
	return r.findRules(ctx, bson.M{}, opts)
}

func (r *MongoRepository) ActiveRulesForDay(ctx context.Context, dayOfWeek int) ([]Rule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}})
	return r.findRules(ctx, bson.M{"dayOfWeek": dayOfWeek, "isActive": true}, opts)
}

func (r *MongoRepository) findRules(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Rule, error) {
	cursor, err := r.rules.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Rule, 0)
	for cursor.Next(ctx) {
		var rule Rule
		if err := cursor.Decode(&rule); err != nil {
			return nil, err
		}
		items = append(items, rule)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) GetRule(ctx context.Context, id string) (Rule, error) {
	var rule Rule
	if err := r.rules.FindOne(ctx, bson.M{"_id": id}).Decode(&rule); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Rule{}, ErrRuleNotFound
		}
		return Rule{}, err
	}
	return rule, nil
}

func (r *MongoRepository) CreateRule(ctx context.Context, rule Rule) error {
	_, err := r.rules.InsertOne(ctx, rule)
	return err
}

func (r *MongoRepository) ReplaceRule(ctx context.Context, rule Rule) error {
	res, err := r.rules.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.rules.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *MongoRepository) IsDateBlocked(ctx context.Context, date string) (bool, error) {
	n, err := r.blocked.CountDocuments(ctx, bson.M{"date": date}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MongoRepository) ListBlockedDates(ctx context.Context, from string) ([]BlockedDate, error) {
	filter := bson.M{}
	if from != "" {
		filter["date"] = bson.M{"$gte": from}
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.blocked.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]BlockedDate, 0)
	for cursor.Next(ctx) {
		var b BlockedDate
		if err := cursor.Decode(&b); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) CreateBlockedDate(ctx context.Context, blocked BlockedDate) error {
	if _, err := r.blocked.InsertOne(ctx, blocked); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDateAlreadyBlocked
		}
		return err
	}
	return nil
}

func (r *MongoRepository) DeleteBlockedDate(ctx context.Context, id string) (BlockedDate, error) {
	var deleted BlockedDate
	if err := r.blocked.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return BlockedDate{}, ErrBlockedDateNotFound
		}
		return BlockedDate{}, err
	}
	return deleted, nil
}
