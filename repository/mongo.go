package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
)

type mongoRepository struct {
	client      *mongo.Client
	users       *mongo.Collection
	workouts    *mongo.Collection
	habits      *mongo.Collection
	completions *mongo.Collection
}

// NewMongo stores everything in db. EnsureIndexes creates the unique indexes
// the conflict checks rely on.
func NewMongo(client *mongo.Client, db *mongo.Database) Repository {
	return &mongoRepository{
		client:      client,
		users:       db.Collection("users"),
		workouts:    db.Collection("workouts"),
		habits:      db.Collection("habits"),
		completions: db.Collection("habit_completions"),
	}
}

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "metrics.fitnessScore", Value: -1}, {Key: "metrics.streak", Value: -1}, {Key: "username", Value: 1}}},
		},
		"workouts": {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		"habits": {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		"habit_completions": {
			{Keys: bson.D{{Key: "habitId", Value: 1}, {Key: "day", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "completedAt", Value: 1}}},
		},
	}
	for coll, idx := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return errors.Wrapf(err, "indexes on %s", coll)
		}
	}
	return nil
}

func mongoErr(err error, format string, args ...interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errors.Wrapf(ErrNotFound, format, args...)
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrapf(ErrConflict, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}

func (a *mongoRepository) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = models.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.UpdatedAt = u.CreatedAt
	_, err := a.users.InsertOne(ctx, u)
	return mongoErr(err, "create user %q", u.Username)
}

func (a *mongoRepository) findUser(ctx context.Context, filter bson.M, label string) (*models.User, error) {
	var usr models.User
	if err := a.users.FindOne(ctx, filter).Decode(&usr); err != nil {
		return nil, mongoErr(err, "user %s", label)
	}
	return &usr, nil
}

func (a *mongoRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	return a.findUser(ctx, bson.M{"_id": id}, id)
}

func (a *mongoRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return a.findUser(ctx, bson.M{"username": username}, username)
}

func (a *mongoRepository) updateUser(ctx context.Context, id string, update bson.M) error {
	res, err := a.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errors.Wrapf(err, "update user %s", id)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "user %s", id)
	}
	return nil
}

func (a *mongoRepository) UpdateProfile(ctx context.Context, u *models.User) error {
	return a.updateUser(ctx, u.ID, bson.M{"$set": bson.M{
		"displayName": u.DisplayName,
		"school":      u.School,
		"updatedAt":   time.Now().UTC(),
	}})
}

func userFilter(q UserQuery) bson.M {
	filter := bson.M{}
	if q.Role != "" {
		filter["role"] = q.Role
	}
	if q.School != "" {
		filter["school"] = q.School
	}
	if q.ActiveOnly {
		filter["isActive"] = true
	}
	return filter
}

var userSorts = map[string]bson.D{
	SortFitness: {{Key: "metrics.fitnessScore", Value: -1}, {Key: "metrics.streak", Value: -1}, {Key: "username", Value: 1}},
	SortOverall: {{Key: "scores.overall", Value: -1}, {Key: "metrics.fitnessScore", Value: -1}, {Key: "username", Value: 1}},
	SortPoints:  {{Key: "totalPoints", Value: -1}, {Key: "username", Value: 1}},
	SortNewest:  {{Key: "createdAt", Value: -1}, {Key: "username", Value: 1}},
}

func (a *mongoRepository) ListUsers(ctx context.Context, q UserQuery) ([]models.User, error) {
	opts := options.Find().SetSort(userSorts[normalizeSort(q.SortBy)])
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cursor, err := a.users.Find(ctx, userFilter(q), opts)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer cursor.Close(ctx)

	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return users, nil
}

func (a *mongoRepository) CountUsers(ctx context.Context, q UserQuery) (int64, error) {
	n, err := a.users.CountDocuments(ctx, userFilter(q))
	if err != nil {
		return 0, errors.Wrap(err, "count users")
	}
	return n, nil
}

func (a *mongoRepository) AddPoints(ctx context.Context, userID string, points, xp int) error {
	return a.updateUser(ctx, userID, bson.M{"$inc": bson.M{
		"totalPoints": points,
		"totalXP":     xp,
	}})
}

func (a *mongoRepository) SaveScores(ctx context.Context, userID string, scores metrics.Scores, at time.Time) error {
	return a.updateUser(ctx, userID, bson.M{"$set": bson.M{
		"scores":          scores,
		"scoresUpdatedAt": at,
	}})
}

func (a *mongoRepository) SaveMetrics(ctx context.Context, userID string, m models.FitnessMetrics) error {
	return a.updateUser(ctx, userID, bson.M{"$set": bson.M{"metrics": m}})
}

func (a *mongoRepository) InsertWorkout(ctx context.Context, w *models.Workout) error {
	if w.ID == "" {
		w.ID = models.NewID()
	}
	_, err := a.workouts.InsertOne(ctx, w)
	return mongoErr(err, "insert workout for %s", w.UserID)
}

func (a *mongoRepository) InsertWorkouts(ctx context.Context, ws []models.Workout) error {
	if len(ws) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(ws))
	for i := range ws {
		if ws[i].ID == "" {
			ws[i].ID = models.NewID()
		}
		writes = append(writes, mongo.NewInsertOneModel().SetDocument(ws[i]))
	}
	_, err := a.workouts.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return mongoErr(err, "insert %d workouts", len(ws))
}

func (a *mongoRepository) WorkoutTimes(ctx context.Context, userID string) ([]time.Time, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetProjection(bson.M{"timestamp": 1})
	cursor, err := a.workouts.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "workouts of %s", userID)
	}
	defer cursor.Close(ctx)

	var times []time.Time
	for cursor.Next(ctx) {
		var row struct {
			Timestamp time.Time `bson:"timestamp"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode workout")
		}
		times = append(times, row.Timestamp)
	}
	return times, errors.Wrap(cursor.Err(), "workout cursor")
}

func (a *mongoRepository) CreateHabit(ctx context.Context, h *models.Habit) error {
	if h.ID == "" {
		h.ID = models.NewID()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := a.habits.InsertOne(ctx, h)
	return mongoErr(err, "create habit %q", h.Name)
}

func (a *mongoRepository) GetHabit(ctx context.Context, id string) (*models.Habit, error) {
	var h models.Habit
	if err := a.habits.FindOne(ctx, bson.M{"_id": id}).Decode(&h); err != nil {
		return nil, mongoErr(err, "habit %s", id)
	}
	return &h, nil
}

func (a *mongoRepository) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := a.habits.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "habits of %s", userID)
	}
	defer cursor.Close(ctx)

	habits := make([]models.Habit, 0)
	if err := cursor.All(ctx, &habits); err != nil {
		return nil, errors.Wrap(err, "decode habits")
	}
	return habits, nil
}

func (a *mongoRepository) UpdateHabitStreak(ctx context.Context, h *models.Habit) error {
	res, err := a.habits.UpdateOne(ctx, bson.M{"_id": h.ID}, bson.M{"$set": bson.M{
		"streak":        h.Streak,
		"longestStreak": h.LongestStreak,
		"lastCompleted": h.LastCompleted,
	}})
	if err != nil {
		return errors.Wrapf(err, "update habit %s", h.ID)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "habit %s", h.ID)
	}
	return nil
}

func (a *mongoRepository) InsertCompletion(ctx context.Context, c *models.HabitCompletion) error {
	if c.ID == "" {
		c.ID = models.NewID()
	}
	_, err := a.completions.InsertOne(ctx, c)
	return mongoErr(err, "habit %s on %s", c.HabitID, c.Day)
}

func (a *mongoRepository) ListCompletions(ctx context.Context, userID string, since time.Time) ([]models.HabitCompletion, error) {
	filter := bson.M{"userId": userID, "completedAt": bson.M{"$gte": since}}
	opts := options.Find().SetSort(bson.D{{Key: "completedAt", Value: 1}})
	cursor, err := a.completions.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "completions of %s", userID)
	}
	defer cursor.Close(ctx)

	out := make([]models.HabitCompletion, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode completions")
	}
	return out, nil
}

func (a *mongoRepository) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
