package document

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shakram02/go-chatdb/internal/catalog"
	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/schema"
)

func TestParsePipeline(t *testing.T) {
	pipeline, err := ParsePipeline(`[{"$group": {"_id": "$status", "total": {"$sum": "$amount"}}}, {"$sort": {"total": -1}}]`, 1)
	require.NoError(t, err)
	require.Len(t, pipeline, 3)

	assert.Equal(t, "$group", pipeline[0][0].Key)
	assert.Equal(t, "$sort", pipeline[1][0].Key)
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(1)}}, pipeline[2])

	sort := pipeline[1][0].Value.(bson.D)
	assert.Equal(t, int32(-1), sort[0].Value)

	unlimited, err := ParsePipeline(`[{"$match": {"qty": {"$gt": 2}}}]`, 0)
	require.NoError(t, err)
	assert.Len(t, unlimited, 1)
}

func TestParsePipelineExtendedJSON(t *testing.T) {
	pipeline, err := ParsePipeline(`[{"$match": {"placed": {"$gte": {"$date": "2024-01-01T00:00:00Z"}}}}]`, 0)
	require.NoError(t, err)

	match := pipeline[0][0].Value.(bson.D)
	cond := match[0].Value.(bson.D)
	date, ok := cond[0].Value.(primitive.DateTime)
	require.True(t, ok, "expected a BSON date, got %T", cond[0].Value)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), date.Time().UTC())
}

func TestParsePipelineErrors(t *testing.T) {
	tests := []struct {
		name      string
		statement string
	}{
		{"not an array", `{"$match": {}}`},
		{"invalid json", `[{"$match": }]`},
		{"stage is not a document", `[1]`},
		{"stage with two operators", `[{"$match": {}, "$limit": 1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipeline(tt.statement, 0)
			require.Error(t, err)
			assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeParse))
		})
	}
}

func TestParseFind(t *testing.T) {
	spec, err := ParseFind(`{"filter": {"name": {"$regex": "an", "$options": "i"}}, "sort": {"age": -1}, "limit": 5}`)
	require.NoError(t, err)

	assert.Equal(t, "name", spec.Filter[0].Key)
	assert.Equal(t, bson.D{{Key: "age", Value: int32(-1)}}, spec.Sort)
	assert.Equal(t, int64(5), spec.Limit)

	opts := spec.Options(1)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(1), *opts.Limit)

	opts = spec.Options(0)
	assert.Equal(t, int64(5), *opts.Limit)

	sortOnly, err := ParseFind(`{"sort": {"age": 1}}`)
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, sortOnly.Filter)
	assert.Nil(t, sortOnly.Options(0).Limit)
}

func TestParseFindProjection(t *testing.T) {
	spec, err := ParseFind(`{"filter": {"age": {"$gt": 30}}, "projection": {"_id": 0, "name": 1}}`)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: int32(0)}, {Key: "name", Value: int32(1)}}, spec.Projection)

	// projecting _id itself keeps it
	spec, err = ParseFind(`{"projection": {"_id": 0, "_id": 1}}`)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "_id", Value: int32(1)}}, spec.Projection)
}

func TestParseFindErrors(t *testing.T) {
	for _, statement := range []string{
		`[]`,
		`{"filter": [1, 2]}`,
		`{"where": {"a": 1}}`,
		`{"limit": -1}`,
	} {
		t.Run(statement, func(t *testing.T) {
			_, err := ParseFind(statement)
			require.Error(t, err)
			assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeParse))
		})
	}
}

func TestResultFromDocuments(t *testing.T) {
	id := primitive.NewObjectID()
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	res := ResultFromDocuments([]bson.D{
		{{Key: "_id", Value: id}, {Key: "name", Value: "ann"}},
		{{Key: "_id", Value: "x"}, {Key: "placed", Value: primitive.NewDateTimeFromTime(when)}, {Key: "name", Value: "bob"}},
		{{Key: "tags", Value: bson.A{"a", int32(1)}}},
	})

	assert.Equal(t, []string{"_id", "name", "placed", "tags"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, []any{id.Hex(), "ann", nil, nil}, res.Rows[0])
	assert.Equal(t, []any{"x", "bob", "2024-03-01T12:00:00Z", nil}, res.Rows[1])
	assert.Equal(t, `["a",1]`, res.Rows[2][3])

	empty := ResultFromDocuments(nil)
	assert.True(t, empty.Empty())
}

func TestDisplayValueNestedDocument(t *testing.T) {
	assert.Equal(t, `{"city":"Cairo"}`, DisplayValue(bson.D{{Key: "city", Value: "Cairo"}}))
	assert.Equal(t, int32(7), DisplayValue(int32(7)))
	assert.Equal(t, true, DisplayValue(true))
}

func TestTableFromDocument(t *testing.T) {
	table := TableFromDocument("orders", bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "status", Value: "paid"},
		{Key: "amount", Value: 12.5},
		{Key: "placed", Value: primitive.NewDateTimeFromTime(time.Now())},
		{Key: "gift", Value: false},
	})

	assert.Equal(t, "orders", table.Name)
	assert.Equal(t, []string{"_id", "status", "amount", "placed", "gift"}, table.FieldNames())

	id, _ := table.Field("_id")
	assert.True(t, id.PrimaryKey)

	categories := map[string]schema.Category{}
	for _, f := range table.Fields {
		categories[f.Name] = f.Category
	}
	assert.Equal(t, map[string]schema.Category{
		"_id":    schema.CategoryOther,
		"status": schema.CategoryText,
		"amount": schema.CategoryNumeric,
		"placed": schema.CategoryDate,
		"gift":   schema.CategoryOther,
	}, categories)
}

func TestParseDocuments(t *testing.T) {
	docs, err := ParseDocuments([]byte(`{"name": "ann", "joined": {"$date": "2024-01-01T00:00:00Z"}}`))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.IsType(t, primitive.DateTime(0), docs[0][1].Value)

	docs, err = ParseDocuments([]byte("\n[{\"a\": 1}, {\"a\": 2}, {\"b\": \"x\"}]\n"))
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	for _, bad := range []string{"", "   ", "[]", "[1, 2]", "{not json}", `"text"`} {
		_, err := ParseDocuments([]byte(bad))
		assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeParse), "input %q", bad)
	}
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, ValidateCollectionName("orders"))
	assert.NoError(t, ValidateCollectionName("orders.archive"))

	for _, name := range []string{"", "  ", "price$", "system.users"} {
		err := ValidateCollectionName(name)
		assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeValidation), "name %q", name)
	}
}

func TestIngestFileRejectsBeforeConnecting(t *testing.T) {
	s := &Store{}
	dir := t.TempDir()

	_, err := s.IngestFile(t.Context(), filepath.Join(dir, "data.sql"), "orders")
	assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeValidation))

	_, err = s.IngestFile(t.Context(), filepath.Join(dir, "missing.json"), "orders")
	assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeFileSystem))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{oops"), 0o644))
	_, err = s.IngestFile(t.Context(), bad, "orders")
	assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeParse))

	_, err = s.IngestFile(t.Context(), bad, "system.orders")
	assert.True(t, chatdberrors.IsType(err, chatdberrors.ErrTypeValidation))
}

func TestGeneratedStatementsParse(t *testing.T) {
	s := schema.New([]schema.Table{
		TableFromDocument("orders", bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "status", Value: "paid"},
			{Key: "amount", Value: 12.5},
			{Key: "placed", Value: primitive.NewDateTimeFromTime(time.Now())},
		}),
	})

	c, err := catalog.Default()
	require.NoError(t, err)
	g := catalog.NewGenerator(c, catalog.StoreDocument, nil, nil, catalog.GeneratorOptions{Seed: 1})

	sets := append([]string{catalog.SetSample}, c.ConstructNames(catalog.StoreDocument)...)
	for _, set := range sets {
		candidates, failures := g.Candidates(s, set)
		require.Empty(t, failures, set)
		require.NotEmpty(t, candidates, set)

		for _, q := range candidates {
			switch q.Op {
			case catalog.OpAggregate:
				_, err := ParsePipeline(q.Statement, 1)
				assert.NoError(t, err, q.Statement)
			case catalog.OpFind:
				_, err := ParseFind(q.Statement)
				assert.NoError(t, err, q.Statement)
			default:
				t.Errorf("unexpected op %q in %s", q.Op, q.Template)
			}
		}
	}
}
