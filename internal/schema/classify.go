package schema

import (
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentIDField is the primary key of every document collection.
const DocumentIDField = "_id"

var (
	// spatial and interval types that would otherwise hit "int" or "string"
	otherMarkers   = []string{"interval", "point", "linestring", "polygon", "geometry", "geography"}
	dateMarkers    = []string{"date", "time"}
	numericMarkers = []string{"int", "float", "double", "decimal", "numeric", "real"}
	textMarkers    = []string{"char", "text", "string", "enum", "uuid"}
)

// ClassifySQLType maps a declared column type to a category by substring
// match. Spatial and interval types are checked first, then dates, so that
// "point" or "datetime" never fall into the numeric bucket through "int".
func ClassifySQLType(declared string) Category {
	t := strings.ToLower(declared)
	switch {
	case containsAny(t, otherMarkers):
		return CategoryOther
	case containsAny(t, dateMarkers):
		return CategoryDate
	case containsAny(t, numericMarkers):
		return CategoryNumeric
	case containsAny(t, textMarkers):
		return CategoryText
	}
	return CategoryOther
}

// ClassifyValue maps a sampled document value to a category. Booleans are
// not numeric.
func ClassifyValue(v any) Category {
	switch v.(type) {
	case int, int32, int64, float32, float64, primitive.Decimal128:
		return CategoryNumeric
	case string:
		return CategoryText
	case primitive.DateTime, time.Time:
		return CategoryDate
	}
	return CategoryOther
}

// ValueTypeName names a sampled value's type for display.
func ValueTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case int32:
		return "int"
	case int64:
		return "long"
	case float64:
		return "double"
	case string:
		return "string"
	case bool:
		return "bool"
	case primitive.DateTime, time.Time:
		return "date"
	case primitive.ObjectID:
		return "objectId"
	case primitive.Decimal128:
		return "decimal"
	case primitive.D, primitive.M:
		return "object"
	case primitive.A:
		return "array"
	}
	return reflect.TypeOf(v).String()
}

// DocumentField builds the descriptor of one sampled document field.
func DocumentField(name string, value any) Field {
	return Field{
		Name:       name,
		Type:       ValueTypeName(value),
		Category:   ClassifyValue(value),
		PrimaryKey: name == DocumentIDField,
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
