package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
	"github.com/projecthub/server/internal/port/outbound"
	apperrors "github.com/projecthub/server/internal/shared/errors"
)

type columnKind int

const (
	columnScalar columnKind = iota
	// columnJSONObjects is a jsonb array of objects matched on one key.
	columnJSONObjects
	// columnJSONValues is a jsonb array of scalar values.
	columnJSONValues
)

type column struct {
	name string
	kind columnKind
	key  string
}

var (
	userColumns = map[model.Field]column{
		model.FieldID:    {name: "id"},
		model.FieldName:  {name: "name"},
		model.FieldEmail: {name: "email"},
		model.FieldRole:  {name: "role"},
	}
	projectColumns = map[model.Field]column{
		model.FieldID:          {name: "id"},
		model.FieldOwner:       {name: "owner_id"},
		model.FieldTeamUser:    {name: "team", kind: columnJSONObjects, key: "user_id"},
		model.FieldStatus:      {name: "status"},
		model.FieldPriority:    {name: "priority"},
		model.FieldName:        {name: "name"},
		model.FieldDescription: {name: "description"},
	}
	taskColumns = map[model.Field]column{
		model.FieldID:          {name: "id"},
		model.FieldProject:     {name: "project_id"},
		model.FieldCreatedBy:   {name: "created_by"},
		model.FieldAssignedTo:  {name: "assigned_to", kind: columnJSONValues},
		model.FieldStatus:      {name: "status"},
		model.FieldPriority:    {name: "priority"},
		model.FieldTitle:       {name: "title"},
		model.FieldDescription: {name: "description"},
	}
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// translate renders pred as a SQL boolean expression with positional args.
func translate(pred query.Predicate, columns map[model.Field]column) (string, []any, error) {
	switch pred.Op {
	case query.OpAll:
		return "TRUE", nil, nil

	case query.OpEq:
		col, ok := columns[pred.Field]
		if !ok || col.kind != columnScalar {
			return "", nil, fmt.Errorf("unsupported eq field %q", pred.Field)
		}
		return col.name + " = ?", []any{pred.Value}, nil

	case query.OpIn:
		col, ok := columns[pred.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported in field %q", pred.Field)
		}
		var doc any
		switch col.kind {
		case columnJSONObjects:
			doc = []map[string]any{{col.key: pred.Value}}
		case columnJSONValues:
			doc = []any{pred.Value}
		default:
			return "", nil, fmt.Errorf("field %q is not an array", pred.Field)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return "", nil, err
		}
		return col.name + " @> ?::jsonb", []any{string(raw)}, nil

	case query.OpSearch:
		pattern := "%" + likeEscaper.Replace(pred.Term) + "%"
		parts := make([]string, 0, len(pred.Fields))
		args := make([]any, 0, len(pred.Fields))
		for _, f := range pred.Fields {
			col, ok := columns[f]
			if !ok || col.kind != columnScalar {
				return "", nil, fmt.Errorf("unsupported search field %q", f)
			}
			parts = append(parts, col.name+" ILIKE ?")
			args = append(args, pattern)
		}
		if len(parts) == 0 {
			return "FALSE", nil, nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil

	case query.OpAnd, query.OpOr:
		if len(pred.Children) == 0 {
			if pred.Op == query.OpAnd {
				return "TRUE", nil, nil
			}
			return "FALSE", nil, nil
		}
		sep := " AND "
		if pred.Op == query.OpOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(pred.Children))
		var args []any
		for _, child := range pred.Children {
			sql, childArgs, err := translate(child, columns)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, childArgs...)
		}
		return "(" + strings.Join(parts, sep) + ")", args, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate op %q", pred.Op)
	}
}

// Collection is a gorm-backed collection of one record type.
type Collection[T model.Document] struct {
	db       *gorm.DB
	resource string
	columns  map[model.Field]column
	newDoc   func() T
	now      func() time.Time
}

func newCollection[T model.Document](db *gorm.DB, resource string, columns map[model.Field]column, newDoc func() T) *Collection[T] {
	return &Collection[T]{
		db:       db,
		resource: resource,
		columns:  columns,
		newDoc:   newDoc,
		now:      time.Now,
	}
}

func (c *Collection[T]) FindByID(ctx context.Context, id uuid.UUID) (T, error) {
	doc := c.newDoc()
	err := c.db.WithContext(ctx).Where("id = ?", id).First(doc).Error
	if err != nil {
		var zero T
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, apperrors.NotFound(c.resource)
		}
		return zero, fmt.Errorf("find %s: %w", c.resource, err)
	}
	return doc, nil
}

func (c *Collection[T]) Find(ctx context.Context, pred query.Predicate) ([]T, error) {
	where, args, err := translate(pred, c.columns)
	if err != nil {
		return nil, fmt.Errorf("translate %s predicate: %w", c.resource, err)
	}

	out := make([]T, 0)
	err = c.db.WithContext(ctx).
		Model(c.newDoc()).
		Where(where, args...).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.resource, err)
	}
	return out, nil
}

func (c *Collection[T]) Insert(ctx context.Context, doc T) error {
	model.PrepareInsert(doc, c.now().UTC())
	if err := c.db.WithContext(ctx).Create(doc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
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

	res := c.db.WithContext(ctx).
		Model(doc).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(doc)
	if res.Error != nil {
		doc.SetVersion(expected)
		return fmt.Errorf("update %s: %w", c.resource, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	doc.SetVersion(expected)
	var count int64
	if err := c.db.WithContext(ctx).Model(c.newDoc()).Where("id = ?", doc.GetID()).Count(&count).Error; err != nil {
		return fmt.Errorf("check %s: %w", c.resource, err)
	}
	if count == 0 {
		return apperrors.NotFound(c.resource)
	}
	return apperrors.Conflict(c.resource + " was modified concurrently")
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := c.db.WithContext(ctx).Where("id = ?", id).Delete(c.newDoc())
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", c.resource, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(c.resource)
	}
	return nil
}

func (c *Collection[T]) DeleteMany(ctx context.Context, pred query.Predicate) (int64, error) {
	where, args, err := translate(pred, c.columns)
	if err != nil {
		return 0, fmt.Errorf("translate %s predicate: %w", c.resource, err)
	}
	res := c.db.WithContext(ctx).Where(where, args...).Delete(c.newDoc())
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", c.resource, res.Error)
	}
	return res.RowsAffected, nil
}

// Store is a postgres EntityStore.
type Store struct {
	db       *gorm.DB
	users    *Collection[*model.User]
	projects *Collection[*model.Project]
	tasks    *Collection[*model.Task]
}

var _ outbound.EntityStore = (*Store)(nil)

// NewStore creates a postgres store on an open gorm connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		users:    newCollection(db, "user", userColumns, func() *model.User { return &model.User{} }),
		projects: newCollection(db, "project", projectColumns, func() *model.Project { return &model.Project{} }),
		tasks:    newCollection(db, "task", taskColumns, func() *model.Task { return &model.Task{} }),
	}
}

func (s *Store) Users() outbound.Collection[*model.User]       { return s.users }
func (s *Store) Projects() outbound.Collection[*model.Project] { return s.projects }
func (s *Store) Tasks() outbound.Collection[*model.Task]       { return s.tasks }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&model.User{}, &model.Project{}, &model.Task{})
}
