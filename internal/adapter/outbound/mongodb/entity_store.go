// Package mongodb implements the entity store on MongoDB collections.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
	"github.com/projecthub/server/internal/port/outbound"
	"github.com/projecthub/server/internal/shared/config"
	apperrors "github.com/projecthub/server/internal/shared/errors"
)

var (
	userPaths = map[model.Field]string{
		model.FieldID:    "_id",
		model.FieldName:  "name",
		model.FieldEmail: "email",
		model.FieldRole:  "role",
	}
	projectPaths = map[model.Field]string{
		model.FieldID:          "_id",
		model.FieldOwner:       "owner_id",
		model.FieldTeamUser:    "team.user_id",
		model.FieldStatus:      "status",
		model.FieldPriority:    "priority",
		model.FieldName:        "name",
		model.FieldDescription: "description",
	}
	taskPaths = map[model.Field]string{
		model.FieldID:          "_id",
		model.FieldProject:     "project_id",
		model.FieldCreatedBy:   "created_by",
		model.FieldAssignedTo:  "assigned_to",
		model.FieldStatus:      "status",
		model.FieldPriority:    "priority",
		model.FieldTitle:       "title",
		model.FieldDescription: "description",
	}
)

// filter renders pred as a MongoDB query document. Array membership needs no
// special operator: an equality match on an array path matches any element.
func filter(pred query.Predicate, paths map[model.Field]string) (bson.M, error) {
	switch pred.Op {
	case query.OpAll:
		return bson.M{}, nil

	case query.OpEq, query.OpIn:
		path, ok := paths[pred.Field]
		if !ok {
			return nil, fmt.Errorf("unsupported field %q", pred.Field)
		}
		return bson.M{path: pred.Value}, nil

	case query.OpSearch:
		re := primitive.Regex{Pattern: regexp.QuoteMeta(pred.Term), Options: "i"}
		alts := make(bson.A, 0, len(pred.Fields))
		for _, f := range pred.Fields {
			path, ok := paths[f]
			if !ok {
				return nil, fmt.Errorf("unsupported search field %q", f)
			}
			alts = append(alts, bson.M{path: re})
		}
		return bson.M{"$or": alts}, nil

	case query.OpAnd, query.OpOr:
		op := "$and"
		if pred.Op == query.OpOr {
			op = "$or"
		}
		if len(pred.Children) == 0 {
			if pred.Op == query.OpAnd {
				return bson.M{}, nil
			}
			return bson.M{"_id": bson.M{"$exists": false}}, nil
		}
		children := make(bson.A, 0, len(pred.Children))
		for _, child := range pred.Children {
			m, err := filter(child, paths)
			if err != nil {
				return nil, err
			}
			children = append(children, m)
		}
		return bson.M{op: children}, nil

	default:
		return nil, fmt.Errorf("unsupported predicate op %q", pred.Op)
	}
}

// Collection is a MongoDB-backed collection of one record type.
type Collection[T model.Document] struct {
	coll     *mongo.Collection
	resource string
	paths    map[model.Field]string
	newDoc   func() T
	now      func() time.Time
}

func newCollection[T model.Document](coll *mongo.Collection, resource string, paths map[model.Field]string, newDoc func() T) *Collection[T] {
	return &Collection[T]{
		coll:     coll,
		resource: resource,
		paths:    paths,
		newDoc:   newDoc,
		now:      time.Now,
	}
}

func (c *Collection[T]) FindByID(ctx context.Context, id uuid.UUID) (T, error) {
	doc := c.newDoc()
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(doc)
	if err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, apperrors.NotFound(c.resource)
		}
		return zero, fmt.Errorf("find %s: %w", c.resource, err)
	}
	return doc, nil
}

func (c *Collection[T]) Find(ctx context.Context, pred query.Predicate) ([]T, error) {
	f, err := filter(pred, c.paths)
	if err != nil {
		return nil, fmt.Errorf("translate %s predicate: %w", c.resource, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := c.coll.Find(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.resource, err)
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	for cursor.Next(ctx) {
		doc := c.newDoc()
		if err := cursor.Decode(doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.resource, err)
		}
		out = append(out, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.resource, err)
	}
	return out, nil
}

func (c *Collection[T]) Insert(ctx context.Context, doc T) error {
	model.PrepareInsert(doc, c.now().UTC())
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict(c.resource + " already exists")
		}
		return fmt.Errorf("insert %s: %w", c.resource, err)
	}
	return nil
}

func (c *Collection[T]) UpdateByID(ctx context.Context, doc T) error {
	expected := doc.GetVersion()
	doc.SetVersion(expected + 1)
	doc.Touch(c.now().UTC())

	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": doc.GetID(), "version": expected}, doc)
	if err != nil {
		doc.SetVersion(expected)
		return fmt.Errorf("update %s: %w", c.resource, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	doc.SetVersion(expected)
	n, err := c.coll.CountDocuments(ctx, bson.M{"_id": doc.GetID()})
	if err != nil {
		return fmt.Errorf("check %s: %w", c.resource, err)
	}
	if n == 0 {
		return apperrors.NotFound(c.resource)
	}
	return apperrors.Conflict(c.resource + " was modified concurrently")
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.resource, err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound(c.resource)
	}
	return nil
}

func (c *Collection[T]) DeleteMany(ctx context.Context, pred query.Predicate) (int64, error) {
	f, err := filter(pred, c.paths)
	if err != nil {
		return 0, fmt.Errorf("translate %s predicate: %w", c.resource, err)
	}
	res, err := c.coll.DeleteMany(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.resource, err)
	}
	return res.DeletedCount, nil
}

// Store is a MongoDB EntityStore.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	logger   *zap.Logger
	users    *Collection[*model.User]
	projects *Collection[*model.Project]
	tasks    *Collection[*model.Task]
}

var _ outbound.EntityStore = (*Store)(nil)

// Connect opens a client against cfg.URI and verifies it with a ping.
func Connect(ctx context.Context, cfg *config.MongoConfig, logger *zap.Logger) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetRegistry(NewRegistry()).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("connected to mongo", zap.String("database", cfg.Database))
	return NewStore(client, cfg.Database, logger), nil
}

// NewStore wraps an existing client.
func NewStore(client *mongo.Client, database string, logger *zap.Logger) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		db:       db,
		logger:   logger,
		users:    newCollection(db.Collection("users"), "user", userPaths, func() *model.User { return &model.User{} }),
		projects: newCollection(db.Collection("projects"), "project", projectPaths, func() *model.Project { return &model.Project{} }),
		tasks:    newCollection(db.Collection("tasks"), "task", taskPaths, func() *model.Task { return &model.Task{} }),
	}
}

func (s *Store) Users() outbound.Collection[*model.User]       { return s.users }
func (s *Store) Projects() outbound.Collection[*model.Project] { return s.projects }
func (s *Store) Tasks() outbound.Collection[*model.Task]       { return s.tasks }

// Ping checks the connection to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes used by list queries and the unique email index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"projects": {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "team.user_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: 1}}},
		},
		"tasks": {
			{Keys: bson.D{{Key: "project_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
			{Keys: bson.D{{Key: "assigned_to", Value: 1}}},
		},
	}

	for name, models := range specs {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
		s.logger.Debug("ensured indexes", zap.String("collection", name), zap.Int("count", len(models)))
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
