// Package mongodb implements the plan store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/injectgen/database"
	"github.com/gocrud/injectgen/logging"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type document struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	Container     string        `bson:"container"`
	Manifest      string        `bson:"manifest"`
	Digest        string        `bson:"digest"`
	AsyncTeardown bool          `bson:"async_teardown"`
	Roots         int           `bson:"roots"`
	Stubs         int           `bson:"stubs"`
	Errors        int           `bson:"errors"`
	Summary       []byte        `bson:"summary"`
	CreatedAt     time.Time     `bson:"created_at"`
}

func toDocument(r *database.Record) document {
	return document{
		Container:     r.Container,
		Manifest:      r.Manifest,
		Digest:        r.Digest,
		AsyncTeardown: r.AsyncTeardown,
		Roots:         r.Roots,
		Stubs:         r.Stubs,
		Errors:        r.Errors,
		Summary:       r.Summary,
		CreatedAt:     r.CreatedAt,
	}
}

func (d document) record() *database.Record {
	return &database.Record{
		Container:     d.Container,
		Manifest:      d.Manifest,
		Digest:        d.Digest,
		AsyncTeardown: d.AsyncTeardown,
		Roots:         d.Roots,
		Stubs:         d.Stubs,
		Errors:        d.Errors,
		Summary:       d.Summary,
		CreatedAt:     d.CreatedAt,
	}
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// Store is a database.Store on a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger logging.Logger
}

var _ database.Store = (*Store)(nil)

// Open connects and ensures the (container, created_at) index.
func Open(ctx context.Context, opts *MongoOptions) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Username != "" || opts.Password != "" {
		clientOpts.SetAuth(options.Credential{Username: opts.Username, Password: opts.Password})
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(opts.Timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	coll := client.Database(opts.Database).Collection(opts.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "container", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create plan index: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithCategory("mongodb")
	logger.Info("plan store opened",
		logging.Field{Key: "database", Value: opts.Database},
		logging.Field{Key: "collection", Value: opts.Collection})
	return &Store{client: client, coll: coll, logger: logger}, nil
}

func (s *Store) Save(ctx context.Context, r *database.Record) error {
	if _, err := s.coll.InsertOne(ctx, toDocument(r)); err != nil {
		return fmt.Errorf("save plan record %s: %w", r.Container, err)
	}
	s.logger.Debug("plan record saved", logging.Field{Key: "container", Value: r.Container})
	return nil
}

func (s *Store) Latest(ctx context.Context, container string) (*database.Record, error) {
	var d document
	err := s.coll.FindOne(ctx, bson.D{{Key: "container", Value: container}},
		options.FindOne().SetSort(newestFirst)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", database.ErrNotFound, container)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest plan record %s: %w", container, err)
	}
	return d.record(), nil
}

func (s *Store) History(ctx context.Context, container string, limit int) ([]*database.Record, error) {
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.D{{Key: "container", Value: container}}, opts)
	if err != nil {
		return nil, fmt.Errorf("load plan history %s: %w", container, err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode plan history %s: %w", container, err)
	}
	out := make([]*database.Record, len(docs))
	for i, d := range docs {
		out[i] = d.record()
	}
	return out, nil
}

func (s *Store) CloseContext(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
