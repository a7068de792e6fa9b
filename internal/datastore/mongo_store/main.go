package mongo_store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grammargame/internal"
	"grammargame/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	collectionGameSessions = "game_sessions"
	collectionUsers        = "users"
)

type Store struct {
	client   *mongo.Client
	sessions *mongo.Collection
	users    *mongo.Collection
}

func Connect(ctx context.Context, uri string, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, wrap("connect", err)
	}

	db := client.Database(database)
	return &Store{
		client:   client,
		sessions: db.Collection(collectionGameSessions),
		users:    db.Collection(collectionUsers),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.client.Ping(ctx, readpref.Primary()))
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_time", Value: -1}}},
		{Keys: bson.D{{Key: "completed", Value: 1}, {Key: "end_time", Value: 1}}},
	})
	if err != nil {
		return wrap("migrate game_sessions", err)
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return wrap("migrate users", err)
	}

	return nil
}

// Drop removes the whole database.
func (s *Store) Drop(ctx context.Context) error {
	return wrap("drop", s.sessions.Database().Drop(ctx))
}

func (s *Store) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateGameSession(ctx context.Context, session *models.GameSession) error {
	_, err := s.sessions.InsertOne(ctx, session)
	return wrap("create game session", err)
}

func (s *Store) GetGameSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	var session models.GameSession
	err := s.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, internal.ErrSessionNotFound
		}
		return nil, wrap("get game session", err)
	}
	return &session, nil
}

func (s *Store) UpdateGameSessionProgress(ctx context.Context, sessionID string, update models.ProgressUpdate) (*models.GameSession, error) {
	filter := activeFilter(sessionID, update.Score, update.Monotonic)
	change := bson.M{"$set": bson.M{"score": update.Score, "level": update.Level}}

	return s.conditionalUpdate(ctx, "update game session progress", sessionID, filter, change, update.Score, update.Monotonic)
}

// CompleteGameSession uses a pipeline update so end_time can be clamped to
// start_time inside the same atomic write.
func (s *Store) CompleteGameSession(ctx context.Context, sessionID string, completion models.Completion) (*models.GameSession, error) {
	set := bson.M{
		"completed": true,
		"end_time":  bson.M{"$max": bson.A{"$start_time", completion.EndTime}},
	}

	score := -1
	monotonic := false
	if completion.FinalScore != nil {
		score = *completion.FinalScore
		monotonic = completion.Monotonic
		set["score"] = score
	}

	filter := activeFilter(sessionID, score, monotonic)
	change := mongo.Pipeline{{{Key: "$set", Value: set}}}

	return s.conditionalUpdate(ctx, "complete game session", sessionID, filter, change, score, monotonic)
}

func (s *Store) conditionalUpdate(ctx context.Context, op string, sessionID string, filter bson.M, change any, score int, monotonic bool) (*models.GameSession, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session models.GameSession
	err := s.sessions.FindOneAndUpdate(ctx, filter, change, opts).Decode(&session)
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, wrap(op, err)
	}

	current, err := s.GetGameSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := internal.CheckProgress(current, score, monotonic); err != nil {
		return nil, err
	}
	return nil, wrap(op, fmt.Errorf("conditional update of game session %s was not applied", sessionID))
}

func (s *Store) ListGameSessionsByUser(ctx context.Context, userID string) ([]*models.GameSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}, {Key: "_id", Value: -1}})
	return s.find(ctx, "list game sessions", bson.M{"user_id": userID}, opts)
}

func (s *Store) ListCompletedGameSessions(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.GameSession, error) {
	filter := bson.M{
		"completed": true,
		"end_time":  bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "end_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	return s.find(ctx, "list completed game sessions", filter, opts)
}

func (s *Store) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*models.GameSession, error) {
	cursor, err := s.sessions.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(op, err)
	}

	sessions := []*models.GameSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, wrap(op, err)
	}
	return sessions, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Username = strings.ToLower(user.Username)
	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return internal.ErrUsernameTaken
	}
	return wrap("create user", err)
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, "find user", bson.M{"_id": userID})
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "find user by username", bson.M{"username": strings.ToLower(username)})
}

func (s *Store) findUser(ctx context.Context, op string, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, internal.ErrUserNotFound
		}
		return nil, wrap(op, err)
	}
	return &user, nil
}

func activeFilter(sessionID string, score int, monotonic bool) bson.M {
	filter := bson.M{"_id": sessionID, "completed": false}
	if monotonic {
		filter["score"] = bson.M{"$lte": score}
	}
	return filter
}

// wrap folds driver timeouts into context.DeadlineExceeded so callers see ErrTimeout.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsTimeout(err) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return internal.WrapStorage(op, err)
}
