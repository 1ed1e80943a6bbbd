package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	connectTimeout         = 10 * time.Second
	serverSelectionTimeout = 5 * time.Second
)

type Client struct {
	DB *mongo.Database
}

// New connects and selects the application database. Retryable writes
// stay on: the unit of work relies on transactions, and the saved
// listing documents are idempotent replacements.
func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("karta").
		SetRetryWrites(true).
		SetServerSelectionTimeout(serverSelectionTimeout)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}
