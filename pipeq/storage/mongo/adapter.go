package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

// codeNamespaceExists is returned by create on an existing collection.
const codeNamespaceExists = 48

// Adapter runs compiled pipelines natively on MongoDB.
type Adapter struct {
	URI      string
	Database string

	client *mongo.Client
	db     *mongo.Database
}

func New(uri, database string) *Adapter {
	return &Adapter{URI: uri, Database: database}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendMongo }

func (a *Adapter) Connect(ctx context.Context) error {
	if a.Database == "" {
		return errors.New("mongo database name is required")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(a.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	a.client = client
	a.db = client.Database(a.Database)
	return nil
}

func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.client.Disconnect(ctx)
	a.client, a.db = nil, nil
	return err
}

func (a *Adapter) coll(name string) (*mongo.Collection, error) {
	if a.db == nil {
		return nil, errors.New("mongo adapter is not connected")
	}
	return a.db.Collection(name), nil
}

func (a *Adapter) EnsureCollection(ctx context.Context, collection string) error {
	c, err := a.coll(collection)
	if err != nil {
		return err
	}
	if err := a.db.CreateCollection(ctx, collection); err != nil {
		var ce mongo.CommandError
		if !errors.As(err, &ce) || ce.Code != codeNamespaceExists {
			return err
		}
	}
	_, err = c.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: 1}}})
	return err
}

func (a *Adapter) Insert(ctx context.Context, collection string, doc storage.Document) (string, error) {
	c, err := a.coll(collection)
	if err != nil {
		return "", err
	}
	body := make(bson.M, len(doc)+1)
	for k, v := range doc {
		body[k] = encode(v)
	}
	if id, _ := doc["_id"].(string); id != "" {
		body["_id"] = value("_id", id)
	} else {
		body["_id"] = bson.NewObjectID()
	}
	if _, err := c.InsertOne(ctx, body); err != nil {
		return "", err
	}
	return idString(body["_id"]), nil
}

func (a *Adapter) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	c, err := a.coll(collection)
	if err != nil {
		return nil, err
	}
	var raw bson.M
	err = c.FindOne(ctx, bson.M{"_id": value("_id", id)}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return normalizeDoc(raw), nil
}

func (a *Adapter) Update(ctx context.Context, collection, id string, doc storage.Document) (bool, error) {
	c, err := a.coll(collection)
	if err != nil {
		return false, err
	}
	body := make(bson.M, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		body[k] = encode(v)
	}
	res, err := c.ReplaceOne(ctx, bson.M{"_id": value("_id", id)}, body)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (a *Adapter) Delete(ctx context.Context, collection, id string) (bool, error) {
	c, err := a.coll(collection)
	if err != nil {
		return false, err
	}
	res, err := c.DeleteOne(ctx, bson.M{"_id": value("_id", id)})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (a *Adapter) Aggregate(ctx context.Context, collection string, _ storage.Schema, p stage.Pipeline) ([]storage.Document, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	c, err := a.coll(collection)
	if err != nil {
		return nil, err
	}
	pl, err := ToBSON(p)
	if err != nil {
		return nil, err
	}
	cur, err := c.Aggregate(ctx, pl)
	if err != nil {
		return nil, err
	}
	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, err
	}
	out := make([]storage.Document, len(raws))
	for i, r := range raws {
		out[i] = normalizeDoc(r)
	}
	return out, nil
}

func (a *Adapter) Count(ctx context.Context, collection string, _ storage.Schema, p stage.Pipeline) (int64, error) {
	if err := p.ValidateCount(); err != nil {
		return 0, fmt.Errorf("invalid count pipeline: %w", err)
	}
	cnt, _ := p.Count()
	c, err := a.coll(collection)
	if err != nil {
		return 0, err
	}
	pl, err := ToBSON(p)
	if err != nil {
		return 0, err
	}
	cur, err := c.Aggregate(ctx, pl)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		// $count emits nothing when no documents match
		return 0, cur.Err()
	}
	var raw bson.M
	if err := cur.Decode(&raw); err != nil {
		return 0, err
	}
	return countValue(raw[cnt.Field])
}

func countValue(v any) (int64, error) {
	switch n := v.(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("unexpected count value %T", v)
}
