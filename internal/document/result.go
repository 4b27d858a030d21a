package document

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shakram02/go-chatdb/internal/catalog"
)

// ResultFromDocuments tabulates documents. Columns are the union of keys in
// first-seen order; a document missing a key gets nil in that cell.
func ResultFromDocuments(docs []bson.D) *catalog.Result {
	res := &catalog.Result{}
	index := map[string]int{}
	for _, doc := range docs {
		for _, e := range doc {
			if _, ok := index[e.Key]; !ok {
				index[e.Key] = len(res.Columns)
				res.Columns = append(res.Columns, e.Key)
			}
		}
	}

	res.Rows = make([][]any, 0, len(docs))
	for _, doc := range docs {
		row := make([]any, len(res.Columns))
		for _, e := range doc {
			row[index[e.Key]] = DisplayValue(e.Value)
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

// DisplayValue converts BSON values into printable Go values. Scalars pass
// through; nested documents and arrays become relaxed Extended JSON.
func DisplayValue(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return val.String()
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC().Format(time.RFC3339)
	case primitive.Null, primitive.Undefined:
		return nil
	case bson.D, bson.A, bson.M, primitive.Binary, primitive.Regex:
		return extJSON(val)
	default:
		return v
	}
}

func extJSON(v any) string {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false)
	if err != nil {
		return fmt.Sprint(v)
	}
	var wrapper struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return string(data)
	}
	return string(wrapper.V)
}
