package document

import (
	"bytes"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

// FindSpec is a parsed find statement.
type FindSpec struct {
	Filter     bson.D
	Sort       bson.D
	Projection bson.D
	Limit      int64
	Skip       int64
}

// Options builds driver options for the find. A positive limit tightens the
// statement's own limit.
func (f FindSpec) Options(limit int) *options.FindOptions {
	opts := options.Find()
	if len(f.Sort) > 0 {
		opts.SetSort(f.Sort)
	}
	if len(f.Projection) > 0 {
		opts.SetProjection(f.Projection)
	}
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}

	effective := f.Limit
	if limit > 0 && (effective <= 0 || int64(limit) < effective) {
		effective = int64(limit)
	}
	if effective > 0 {
		opts.SetLimit(effective)
	}
	return opts
}

// ParseFind parses a find statement of the form
// {"filter": {...}, "sort": {...}, "projection": {...}, "limit": n, "skip": n}.
// Every key is optional; unknown keys are rejected.
func ParseFind(statement string) (FindSpec, error) {
	var raw struct {
		Filter     json.RawMessage `json:"filter"`
		Sort       json.RawMessage `json:"sort"`
		Projection json.RawMessage `json:"projection"`
		Limit      int64           `json:"limit"`
		Skip       int64           `json:"skip"`
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(statement)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return FindSpec{}, chatdberrors.Wrap(err, chatdberrors.ErrTypeParse, "invalid find statement")
	}
	if raw.Limit < 0 || raw.Skip < 0 {
		return FindSpec{}, chatdberrors.New(chatdberrors.ErrTypeParse, "find limit and skip must not be negative")
	}

	spec := FindSpec{Filter: bson.D{}, Limit: raw.Limit, Skip: raw.Skip}
	parts := []struct {
		name string
		data json.RawMessage
		dst  *bson.D
	}{
		{"filter", raw.Filter, &spec.Filter},
		{"sort", raw.Sort, &spec.Sort},
		{"projection", raw.Projection, &spec.Projection},
	}
	for _, part := range parts {
		if len(part.data) == 0 || string(part.data) == "null" {
			continue
		}
		doc, err := parseDocument(part.data)
		if err != nil {
			return FindSpec{}, chatdberrors.Wrapf(err, chatdberrors.ErrTypeParse, "invalid find %s", part.name)
		}
		*part.dst = doc
	}
	spec.Projection = lastKeyWins(spec.Projection)
	return spec, nil
}

// lastKeyWins drops earlier duplicates of a key, so {"_id": 0, "_id": 1}
// projects _id.
func lastKeyWins(doc bson.D) bson.D {
	if len(doc) < 2 {
		return doc
	}
	last := make(map[string]int, len(doc))
	for i, e := range doc {
		last[e.Key] = i
	}
	out := make(bson.D, 0, len(last))
	for i, e := range doc {
		if last[e.Key] == i {
			out = append(out, e)
		}
	}
	return out
}

// ParsePipeline parses an Extended JSON array of stages. A positive limit
// appends a final $limit stage.
func ParsePipeline(statement string, limit int) (mongo.Pipeline, error) {
	var stages []json.RawMessage
	if err := json.Unmarshal([]byte(statement), &stages); err != nil {
		return nil, chatdberrors.Wrap(err, chatdberrors.ErrTypeParse, "aggregate statement must be a JSON array of stages")
	}

	pipeline := make(mongo.Pipeline, 0, len(stages)+1)
	for i, raw := range stages {
		stage, err := parseDocument(raw)
		if err != nil {
			return nil, chatdberrors.Wrapf(err, chatdberrors.ErrTypeParse, "invalid pipeline stage %d", i+1)
		}
		if len(stage) != 1 {
			return nil, chatdberrors.Newf(chatdberrors.ErrTypeParse, "pipeline stage %d must have exactly one operator", i+1)
		}
		pipeline = append(pipeline, stage)
	}

	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return pipeline, nil
}

func parseDocument(data []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
