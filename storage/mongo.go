// server/storage/mongo.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vinizap/diary/server/domain"
)

// memoryDocument is the persisted shape of a memory in MongoDB.
type memoryDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d memoryDocument) toMemory() domain.Memory {
	return domain.Memory{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Content:   d.Content,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type MongoGateway struct {
	client *mongo.Client
	coll   *mongo.Collection
	opts   options
}

// OpenMongo connects with the Stable API v1 in strict mode, pings the
// deployment and ensures the createdAt index exists.
func OpenMongo(ctx context.Context, uri string, opts ...Option) (*MongoGateway, error) {
	o := buildOptions(opts)

	serverAPI := mongoopts.ServerAPI(mongoopts.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)
	client, err := mongo.Connect(ctx, mongoopts.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, connErr("connect mongodb", err)
	}

	g := &MongoGateway{
		client: client,
		coll:   client.Database(DatabaseName).Collection(CollectionName),
		opts:   o,
	}
	if err := g.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	index := mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}
	if _, err := g.coll.Indexes().CreateOne(ctx, index); err != nil {
		_ = client.Disconnect(ctx)
		return nil, g.classify("create createdAt index", err)
	}

	o.logger.Info().Str("uri", redact(uri)).Msg("connected to mongodb")
	return g, nil
}

func (g *MongoGateway) Ping(ctx context.Context) error {
	err := g.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	if err != nil {
		return connErr("ping mongodb", err)
	}
	return nil
}

// withSession runs fn on an implicit session checked out for this call only.
func (g *MongoGateway) withSession(ctx context.Context, op string, fn func(mongo.SessionContext) error) error {
	if err := g.client.UseSession(ctx, fn); err != nil {
		return g.classify(op, err)
	}
	return nil
}

func (g *MongoGateway) Insert(ctx context.Context, m domain.Memory) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	m = stamp(m, g.opts.now(), time.Millisecond)

	doc := memoryDocument{
		Title:     m.Title,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	var id primitive.ObjectID
	err := g.withSession(ctx, "insert memory", func(sc mongo.SessionContext) error {
		res, err := g.coll.InsertOne(sc, doc)
		if err != nil {
			return err
		}
		oid, ok := res.InsertedID.(primitive.ObjectID)
		if !ok {
			return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
		}
		id = oid
		return nil
	})
	if err != nil {
		return "", err
	}

	g.opts.logger.Debug().Str("id", id.Hex()).Msg("memory inserted")
	return id.Hex(), nil
}

func (g *MongoGateway) List(ctx context.Context) ([]domain.Memory, error) {
	var docs []memoryDocument
	err := g.withSession(ctx, "list memories", func(sc mongo.SessionContext) error {
		sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
		cur, err := g.coll.Find(sc, bson.D{}, mongoopts.Find().SetSort(sort))
		if err != nil {
			return err
		}
		return cur.All(sc, &docs)
	})
	if err != nil {
		return nil, err
	}

	memories := make([]domain.Memory, 0, len(docs))
	for _, d := range docs {
		memories = append(memories, d.toMemory())
	}
	return memories, nil
}

// Update replaces title and content. updatedAt becomes the later of the
// clock and the stored value plus one millisecond, so it always advances.
func (g *MongoGateway) Update(ctx context.Context, id, title, content string) (UpdateResult, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := (domain.Memory{Title: title, Content: content}).Validate(); err != nil {
		return UpdateResult{}, err
	}
	update := updatePipeline(title, content, g.opts.now().UTC().Truncate(time.Millisecond))

	var result UpdateResult
	err = g.withSession(ctx, "update memory", func(sc mongo.SessionContext) error {
		res, err := g.coll.UpdateByID(sc, oid, update)
		if err != nil {
			return err
		}
		result = UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

// updatePipeline sets title and content and moves updatedAt to the later of
// now and the stored value plus one millisecond.
func updatePipeline(title, content string, now time.Time) mongo.Pipeline {
	// $literal keeps user text starting with "$" from being read as a field path.
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "title", Value: bson.D{{Key: "$literal", Value: title}}},
			{Key: "content", Value: bson.D{{Key: "$literal", Value: content}}},
			{Key: "updatedAt", Value: bson.D{{Key: "$max", Value: bson.A{
				now,
				bson.D{{Key: "$add", Value: bson.A{"$updatedAt", 1}}},
			}}}},
		}}},
	}
}

func (g *MongoGateway) Delete(ctx context.Context, id string) (DeleteResult, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return DeleteResult{}, err
	}

	var result DeleteResult
	err = g.withSession(ctx, "delete memory", func(sc mongo.SessionContext) error {
		res, err := g.coll.DeleteOne(sc, bson.D{{Key: "_id", Value: oid}})
		if err != nil {
			return err
		}
		result.DeletedCount = res.DeletedCount
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}

	if !result.Deleted() {
		g.opts.logger.Debug().Str("id", id).Msg("no memory found to delete")
	}
	return result, nil
}

func (g *MongoGateway) Close(ctx context.Context) error {
	return g.client.Disconnect(ctx)
}

func (g *MongoGateway) classify(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
		return connErr(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &domain.InvalidIDError{ID: id, Err: err}
	}
	return oid, nil
}
