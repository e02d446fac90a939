package appointments

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository persists appointments. Create must fail with ErrSlotUnavailable
// when another non-terminal appointment already holds (date, timeSlot).
type Repository interface {
	Create(ctx context.Context, appt Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	GetByToken(ctx context.Context, token string) (Appointment, error)
	// UpdateStatus moves id from one status to another only if it is still
	// in from. It returns ErrStaleStatus when the stored status differs.
	UpdateStatus(ctx context.Context, id, from, to string, at time.Time) (Appointment, error)
	Delete(ctx context.Context, id string) error

	HeldSlots(ctx context.Context, date string) ([]string, error)
	ListByStatus(ctx context.Context, status string, limit int64) ([]Appointment, error)
	ListUpcoming(ctx context.Context, fromDate string, limit int64) ([]Appointment, error)
	CountByStatus(ctx context.Context) (map[string]int, error)

	ListReminderCandidates(ctx context.Context, date string) ([]Appointment, error)
	// MarkReminderSent flips reminderSent only while it is still false and
	// the appointment is confirmed. It reports whether the flag was flipped.
	MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, appt Appointment) error {
	appt.SlotHeld = holdsSlot(appt.Status)
	if _, err := r.col.InsertOne(ctx, appt); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotUnavailable
		}
		return err
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetByToken(ctx context.Context, token string) (Appointment, error) {
	return r.findOne(ctx, bson.M{"cancellationToken": token})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (Appointment, error) {
	var appt Appointment
	if err := r.col.FindOne(ctx, filter).Decode(&appt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id, from, to string, at time.Time) (Appointment, error) {
	set := bson.M{
		"status":    to,
		"slotHeld":  holdsSlot(to),
		"updatedAt": at,
	}
	if to == StatusCancelled {
		set["reminderSent"] = false
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Appointment
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&updated)
	if err == nil {
		return updated, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return Appointment{}, ErrSlotUnavailable
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Appointment{}, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return Appointment{}, getErr
	}
	return Appointment{}, ErrStaleStatus
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) HeldSlots(ctx context.Context, date string) ([]string, error) {
	filter := bson.M{
		"date":   date,
		"status": bson.M{"$in": []string{StatusPending, StatusConfirmed}},
	}
	opts := options.Find().SetProjection(bson.M{"timeSlot": 1})
	items, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	slots := make([]string, 0, len(items))
	for _, appt := range items {
		slots = append(slots, appt.TimeSlot)
	}
	return slots, nil
}

func (r *MongoRepository) ListByStatus(ctx context.Context, status string, limit int64) ([]Appointment, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "timeSlot", Value: 1}}).
		SetLimit(limit)
	return r.find(ctx, filter, opts)
}

func (r *MongoRepository) ListUpcoming(ctx context.Context, fromDate string, limit int64) ([]Appointment, error) {
	filter := bson.M{
		"date":   bson.M{"$gte": fromDate},
		"status": bson.M{"$in": []string{StatusPending, StatusConfirmed}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "timeSlot", Value: 1}}).
		SetLimit(limit)
	return r.find(ctx, filter, opts)
}

func (r *MongoRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int    `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Status] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *MongoRepository) ListReminderCandidates(ctx context.Context, date string) ([]Appointment, error) {
	filter := bson.M{
		"date":         date,
		"status":       StatusConfirmed,
		"reminderSent": false,
	}
	opts := options.Find().SetSort(bson.D{{Key: "timeSlot", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *MongoRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusConfirmed, "reminderSent": false},
		bson.M{"$set": bson.M{"reminderSent": true, "updatedAt": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Appointment, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Appointment, 0)
	for cursor.Next(ctx) {
		var appt Appointment
		if err := cursor.Decode(&appt); err != nil {
			return nil, err
		}
		items = append(items, appt)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
