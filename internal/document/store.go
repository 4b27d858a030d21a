// Package document connects to MongoDB, infers collection schemas from
// sampled documents and runs generated find and aggregate statements.
package document

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/shakram02/go-chatdb/internal/catalog"
	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/logging"
	"github.com/shakram02/go-chatdb/internal/schema"
)

// StoreName is the display name used in messages.
const StoreName = "MongoDB"

const defaultConnectTimeout = 10 * time.Second

// Options tunes a Store.
type Options struct {
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration // 0 disables the per operation timeout
	Logger         *zap.Logger
}

// Store is an open connection to one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	opts   Options
	logger *zap.Logger
}

var _ catalog.Executor = (*Store)(nil)

// Open connects to uri, verifies the connection and selects database.
func Open(ctx context.Context, uri, database string, opts Options) (*Store, error) {
	if database == "" {
		return nil, chatdberrors.New(chatdberrors.ErrTypeValidation, "a MongoDB database name is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	opts.Logger = logging.OrNop(opts.Logger)

	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, chatdberrors.NewConnectionError(StoreName, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, chatdberrors.NewConnectionError(StoreName, err)
	}

	s := &Store{
		client: client,
		db:     client.Database(database),
		opts:   opts,
		logger: opts.Logger.With(zap.String("driver", "mongodb")),
	}
	s.logger.Info("connected", zap.String("database", database))
	return s, nil
}

// DatabaseName is the selected database.
func (s *Store) DatabaseName() string { return s.db.Name() }

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	s.logger.Info("connection closed", zap.String("database", s.db.Name()))
	return s.client.Disconnect(ctx)
}

func (s *Store) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// ListCollections returns the collection names in name order.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "failed to list collections")
	}
	sort.Strings(names)
	return names, nil
}

// Sample returns one document of a collection, or false when it is empty.
func (s *Store) Sample(ctx context.Context, collection string) (bson.D, bool, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	var doc bson.D
	err := s.db.Collection(collection).FindOne(ctx, bson.D{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, chatdberrors.Wrapf(err, chatdberrors.ErrTypeExecution, "failed to sample %q", collection)
	}
	return doc, true, nil
}

// Introspect infers each collection's fields from one sampled document.
// Fields absent from the sample are not seen; empty collections are skipped.
func (s *Store) Introspect(ctx context.Context) (*schema.Schema, error) {
	names, err := s.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]schema.Table, 0, len(names))
	for _, name := range names {
		doc, ok, err := s.Sample(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Debug("skipping empty collection", zap.String("collection", name))
			continue
		}
		tables = append(tables, TableFromDocument(name, doc))
		s.logger.Debug("introspected collection",
			zap.String("collection", name),
			zap.Int("fields", len(doc)))
	}

	out := schema.New(tables)
	if out.Empty() {
		return nil, chatdberrors.NewEmptySchemaError(StoreName)
	}
	return out, nil
}

// TableFromDocument describes a collection by the fields of one document.
func TableFromDocument(collection string, doc bson.D) schema.Table {
	t := schema.Table{Name: collection, Fields: make([]schema.Field, 0, len(doc))}
	for _, e := range doc {
		t.Fields = append(t.Fields, schema.DocumentField(e.Key, e.Value))
	}
	return t
}

// Execute runs a find or aggregate statement. A positive limit caps the
// number of documents returned.
func (s *Store) Execute(ctx context.Context, q catalog.Query, limit int) (*catalog.Result, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()

	coll := s.db.Collection(q.Target)

	var (
		cursor *mongo.Cursor
		err    error
	)
	switch q.Op {
	case catalog.OpAggregate:
		pipeline, perr := ParsePipeline(q.Statement, limit)
		if perr != nil {
			return nil, perr
		}
		cursor, err = coll.Aggregate(ctx, pipeline)

	case catalog.OpFind:
		spec, perr := ParseFind(q.Statement)
		if perr != nil {
			return nil, perr
		}
		cursor, err = coll.Find(ctx, spec.Filter, spec.Options(limit))

	default:
		return nil, chatdberrors.Newf(chatdberrors.ErrTypeUnsupported, "unsupported document operation %q", q.Op)
	}
	if err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "query error")
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeExecution, "failed to read results")
	}
	return ResultFromDocuments(docs), nil
}
