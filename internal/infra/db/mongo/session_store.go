package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainauth "karta/internal/domain/auth"
	domainuser "karta/internal/domain/user"
)

type SessionStore struct {
	col *mongo.Collection
}

func NewSessionStore(db *mongo.Database) *SessionStore {
	col := db.Collection("app_sessions")
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}
	_, _ = col.Indexes().CreateMany(context.Background(), idx)
	return &SessionStore{col: col}
}

func (s *SessionStore) Get(ctx context.Context, token domainauth.Token) (*domainauth.Session, error) {
	var doc sessionDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": string(token)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainauth.ErrSessionNotFound
		}
		return nil, err
	}
	return doc.toSession(), nil
}

func (s *SessionStore) Save(ctx context.Context, session *domainauth.Session) error {
	doc := sessionDocument{
		ID:        string(session.Token),
		UserID:    string(session.UserID),
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (s *SessionStore) Delete(ctx context.Context, token domainauth.Token) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": string(token)})
	return err
}

func (s *SessionStore) DeleteByUser(ctx context.Context, id domainuser.ID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"user_id": string(id)})
	return err
}

type sessionDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (d sessionDocument) toSession() *domainauth.Session {
	return &domainauth.Session{
		Token:     domainauth.Token(d.ID),
		UserID:    domainuser.ID(d.UserID),
		CreatedAt: d.CreatedAt.UTC(),
		ExpiresAt: d.ExpiresAt.UTC(),
	}
}
