// Package mongo stores each collection in a MongoDB collection, using the
// document id as _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	"github.com/tieenbuii/WEB-API/pkg/database"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Backend opens collections on one Mongo database.
type Backend struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Backend = (*Backend)(nil)

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Backend{client: client, db: client.Database(cfg.Database)}, nil
}

// Collection returns the accessor for name.
func (b *Backend) Collection(name string) store.Accessor {
	return &Collection{coll: b.db.Collection(name)}
}

// Ping checks the primary.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (b *Backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

// Collection implements store.Accessor on a Mongo collection.
type Collection struct {
	coll *mongo.Collection
}

var _ store.Accessor = (*Collection)(nil)

func (c *Collection) trace(ctx context.Context, op string) (context.Context, func(error)) {
	return database.Trace(ctx, database.SystemMongo, op, c.coll.Name()+"."+op)
}

func (c *Collection) FindByID(ctx context.Context, id string) (doc domain.Document, err error) {
	ctx, end := c.trace(ctx, "findOne")
	defer func() { end(err) }()
	return decodeOne(c.coll.FindOne(ctx, bson.M{"_id": id}))
}

func (c *Collection) Find(ctx context.Context, q store.Query) (docs []domain.Document, err error) {
	filter, err := toFilter(q.Filter)
	if err != nil {
		return nil, err
	}
	ctx, end := c.trace(ctx, "find")
	defer func() { end(err) }()

	opts := options.Find().SetSort(toSort(q.Sort))
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
		}
		docs = append(docs, domain.Document(q.Fields.Apply(fromStored(m))))
	}
	return docs, cur.Err()
}

func (c *Collection) Count(ctx context.Context, f store.Filter) (n int64, err error) {
	filter, err := toFilter(f)
	if err != nil {
		return 0, err
	}
	ctx, end := c.trace(ctx, "countDocuments")
	defer func() { end(err) }()
	return c.coll.CountDocuments(ctx, filter)
}

func (c *Collection) Create(ctx context.Context, doc domain.Document) (out domain.Document, err error) {
	d := store.PrepareCreate(doc)
	ctx, end := c.trace(ctx, "insertOne")
	defer func() { end(err) }()

	if _, err := c.coll.InsertOne(ctx, toStored(d)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("document %s: %w", d.ID(), apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("insert %s: %w", c.coll.Name(), err)
	}
	return d, nil
}

func (c *Collection) FindByIDAndUpdate(ctx context.Context, id string, patch domain.Document, _ store.UpdateOptions) (out domain.Document, err error) {
	ctx, end := c.trace(ctx, "findOneAndUpdate")
	defer func() { end(err) }()

	update := bson.M{"$set": bson.M(store.PreparePatch(patch))}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOne(c.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts))
}

func (c *Collection) FindByIDAndDelete(ctx context.Context, id string) (out domain.Document, err error) {
	ctx, end := c.trace(ctx, "findOneAndDelete")
	defer func() { end(err) }()
	return decodeOne(c.coll.FindOneAndDelete(ctx, bson.M{"_id": id}))
}

func (c *Collection) Save(ctx context.Context, doc domain.Document, _ store.SaveOptions) (out domain.Document, err error) {
	d := store.PrepareSave(doc)
	d[domain.FieldUpdatedAt] = store.Now()
	ctx, end := c.trace(ctx, "replaceOne")
	defer func() { end(err) }()

	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": d.ID()}, toStored(d))
	if err != nil {
		return nil, fmt.Errorf("replace %s: %w", c.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return nil, apperrors.ErrNotFound
	}
	return d, nil
}

func (c *Collection) DeleteMany(ctx context.Context, ids []string) (n int64, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, end := c.trace(ctx, "deleteMany")
	defer func() { end(err) }()

	res, err := c.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *Collection) Increment(ctx context.Context, id, field string, delta int64) (out domain.Document, err error) {
	ctx, end := c.trace(ctx, "findOneAndUpdate")
	defer func() { end(err) }()
	return c.inc(ctx, bson.M{"_id": id}, field, delta)
}

// DecrementIfAvailable relies on the single-document atomicity of
// findOneAndUpdate with the guard in the filter.
func (c *Collection) DecrementIfAvailable(ctx context.Context, id, field string, n int64) (out domain.Document, err error) {
	ctx, end := c.trace(ctx, "findOneAndUpdate")
	defer func() { end(err) }()

	out, err = c.inc(ctx, bson.M{"_id": id, field: bson.M{"$gte": n}}, field, -n)
	if !errors.Is(err, apperrors.ErrNotFound) {
		return out, err
	}
	exists, err := c.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("check %s %s: %w", c.coll.Name(), id, err)
	}
	if exists > 0 {
		return nil, apperrors.ErrInsufficient
	}
	return nil, apperrors.ErrNotFound
}

func (c *Collection) inc(ctx context.Context, filter bson.M, field string, delta int64) (domain.Document, error) {
	if field == "" || strings.HasPrefix(field, "$") {
		return nil, apperrors.ErrInvalidFilter
	}
	update := bson.M{
		"$inc": bson.M{field: delta},
		"$set": bson.M{domain.FieldUpdatedAt: store.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeOne(c.coll.FindOneAndUpdate(ctx, filter, update, opts))
}

func decodeOne(res *mongo.SingleResult) (domain.Document, error) {
	var m bson.M
	if err := res.Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fromStored(m), nil
}
