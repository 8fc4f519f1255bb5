package vectorstore

import (
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

func stringify(v any) string {
	return fmt.Sprintf("%v", v)
}

// toQdrantPayload converts a payload map to Qdrant protobuf values.
func toQdrantPayload(payload map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		out[k] = toValue(v)
	}
	return out
}

// fromQdrantPayload converts Qdrant protobuf values back to a plain map.
func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(v)
	}
	return out
}

// toValue converts one payload value. Nested maps and slices are preserved
// as Qdrant structs and lists so the content sub-mapping survives a
// write/read round trip.
func toValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(val)}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case time.Time:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val.UTC().Format(time.RFC3339)}}
	case map[string]any:
		fields := make(map[string]*qdrant.Value, len(val))
		for k, nested := range val {
			fields[k] = toValue(nested)
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}
	case map[string]string:
		fields := make(map[string]*qdrant.Value, len(val))
		for k, nested := range val {
			fields[k] = toValue(nested)
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}
	case map[string][]string:
		fields := make(map[string]*qdrant.Value, len(val))
		for k, nested := range val {
			fields[k] = toValue(nested)
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}
	case []string:
		values := make([]*qdrant.Value, len(val))
		for i, item := range val {
			values[i] = toValue(item)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	case []any:
		values := make([]*qdrant.Value, len(val))
		for i, item := range val {
			values[i] = toValue(item)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	default:
		// Unknown types are stored as their string form rather than dropped.
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: stringify(val)}}
	}
}

// fromValue converts one protobuf value back to a plain Go value.
func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(val.StructValue.GetFields()))
		for k, nested := range val.StructValue.GetFields() {
			out[k] = fromValue(nested)
		}
		return out
	case *qdrant.Value_ListValue:
		items := val.ListValue.GetValues()
		out := make([]any, len(items))
		for i, nested := range items {
			out[i] = fromValue(nested)
		}
		return out
	default:
		return nil
	}
}
