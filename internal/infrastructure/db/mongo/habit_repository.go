package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

const collectionHabits = "habits"

type HabitRepository struct {
	col *mongo.Collection
}

func NewHabitRepository(db *mongo.Database) *HabitRepository {
	return &HabitRepository{col: db.Collection(collectionHabits)}
}

// mongoHabit stores the completion date as "YYYY-MM-DD" so it stays a
// calendar date rather than an instant.
type mongoHabit struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	UserID            string             `bson:"user_id"`
	Name              string             `bson:"name"`
	CurrentStreak     int                `bson:"current_streak"`
	LongestStreak     int                `bson:"longest_streak"`
	LastCompletedDate string             `bson:"last_completed_date,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

func (m mongoHabit) toDomain() (*domain.Habit, error) {
	h := &domain.Habit{
		ID:            m.ID.Hex(),
		UserID:        m.UserID,
		Name:          m.Name,
		CurrentStreak: m.CurrentStreak,
		LongestStreak: m.LongestStreak,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.LastCompletedDate != "" {
		d, err := civil.ParseDate(m.LastCompletedDate)
		if err != nil {
			return nil, fmt.Errorf("habit %s: last_completed_date: %w", h.ID, err)
		}
		h.LastCompletedDate = &d
	}
	return h, nil
}

func dateString(d *civil.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// objectID parses a hex id. Malformed ids cannot match any document and are
// reported as not found.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrHabitNotFound
	}
	return oid, nil
}

// Create inserts a new habit document.
func (r *HabitRepository) Create(ctx context.Context, h *domain.Habit) (*domain.Habit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	doc := mongoHabit{
		ID:                primitive.NewObjectID(),
		UserID:            h.UserID,
		Name:              h.Name,
		CurrentStreak:     h.CurrentStreak,
		LongestStreak:     h.LongestStreak,
		LastCompletedDate: dateString(h.LastCompletedDate),
		CreatedAt:         h.CreatedAt.UTC(),
		UpdatedAt:         h.UpdatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	return doc.toDomain()
}

func (r *HabitRepository) FindByID(ctx context.Context, id string) (*domain.Habit, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByUserAndID filters on both keys so a foreign id is indistinguishable
// from a missing one.
func (r *HabitRepository) FindByUserAndID(ctx context.Context, userID, id string) (*domain.Habit, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid, "user_id": userID})
}

func (r *HabitRepository) findOne(ctx context.Context, filter bson.M) (*domain.Habit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc mongoHabit
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}
	return doc.toDomain()
}

// ListByUser returns the user's habits in natural (insertion) order.
func (r *HabitRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Habit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoHabit
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	habits := make([]*domain.Habit, 0, len(docs))
	for _, doc := range docs {
		h, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, nil
}

// Update rewrites the streak fields. user_id is part of the filter and never
// part of the update, so ownership cannot change.
func (r *HabitRepository) Update(ctx context.Context, h *domain.Habit) error {
	oid, err := objectID(h.ID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{
		"current_streak": h.CurrentStreak,
		"longest_streak": h.LongestStreak,
		"updated_at":     h.UpdatedAt.UTC(),
	}
	update := bson.M{"$set": set}
	if h.LastCompletedDate != nil {
		set["last_completed_date"] = h.LastCompletedDate.String()
	} else {
		update["$unset"] = bson.M{"last_completed_date": ""}
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid, "user_id": h.UserID}, update)
	if err != nil {
		return fmt.Errorf("update habit: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

func (r *HabitRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the habits collection.
func (r *HabitRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "_id", Value: 1}, {Key: "user_id", Value: 1}}},
	}
	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("habits indexes: %w", err)
	}
	return nil
}
