package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	filterOpAnd = "$and"
	filterOpOr  = "$or"
	filterOpNot = "$not"
	filterOpIn  = "$in"
	filterOpEq  = "$eq"
	filterOpNe  = "$ne"

	opFilterTranslate = "filter_translate"
)

// translatedFilter is a qdrant filter clause set.
type translatedFilter struct {
	Must    []any
	Should  []any
	MustNot []any
}

func (f translatedFilter) asMap() map[string]any {
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.Should) > 0 {
		out["should"] = f.Should
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

func (f *translatedFilter) merge(src translatedFilter) {
	f.Must = append(f.Must, src.Must...)
	f.Should = append(f.Should, src.Should...)
	f.MustNot = append(f.MustNot, src.MustNot...)
}

// translateFilterMap converts a Chroma-style where clause into qdrant must /
// should / must_not conditions. Keys are visited in sorted order so the
// output is stable.
func translateFilterMap(filter map[string]any) (translatedFilter, error) {
	out := translatedFilter{}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		value := filter[key]
		if !strings.HasPrefix(k, "$") {
			part, err := translateFieldFilter(k, value)
			if err != nil {
				return translatedFilter{}, err
			}
			out.merge(part)
			continue
		}

		switch op := strings.ToLower(k); op {
		case filterOpAnd, filterOpOr:
			items, err := toObjectSlice(value)
			if err != nil {
				return translatedFilter{}, opErr(opFilterTranslate, OperationErrorValidation,
					fmt.Sprintf("operator %s expects array of objects", op), err)
			}
			for _, item := range items {
				sub, err := translateFilterMap(item)
				if err != nil {
					return translatedFilter{}, err
				}
				if op == filterOpAnd {
					out.Must = append(out.Must, sub.asMap())
				} else {
					out.Should = append(out.Should, sub.asMap())
				}
			}
		case filterOpNot:
			item, ok := value.(map[string]any)
			if !ok {
				return translatedFilter{}, opErr(opFilterTranslate, OperationErrorValidation,
					fmt.Sprintf("operator %s expects an object", filterOpNot), nil)
			}
			sub, err := translateFilterMap(item)
			if err != nil {
				return translatedFilter{}, err
			}
			out.MustNot = append(out.MustNot, sub.asMap())
		default:
			return translatedFilter{}, opErr(opFilterTranslate, OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported top-level filter operator %q", k), nil)
		}
	}
	return out, nil
}

func translateFieldFilter(field string, value any) (translatedFilter, error) {
	out := translatedFilter{}
	ops, isOpMap := value.(map[string]any)
	if !isOpMap {
		scalar, ok := toScalarValue(value)
		if !ok {
			return translatedFilter{}, opErr(opFilterTranslate, OperationErrorValidation,
				fmt.Sprintf("field %q expects scalar value or operator object", field), nil)
		}
		out.Must = append(out.Must, matchCondition(field, scalar))
		return out, nil
	}
	if len(ops) == 0 {
		return translatedFilter{}, opErr(opFilterTranslate, OperationErrorValidation,
			fmt.Sprintf("field %q has empty operator map", field), nil)
	}

	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	for _, name := range names {
		opVal := ops[name]
		switch op := strings.ToLower(strings.TrimSpace(name)); op {
		case filterOpEq, filterOpNe:
			scalar, ok := toScalarValue(opVal)
			if !ok {
				return translatedFilter{}, opErr(opFilterTranslate, OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar value", op, field), nil)
			}
			if op == filterOpEq {
				out.Must = append(out.Must, matchCondition(field, scalar))
			} else {
				out.MustNot = append(out.MustNot, matchCondition(field, scalar))
			}
		case filterOpIn:
			values, err := toScalarSlice(opVal)
			if err != nil || len(values) == 0 {
				return translatedFilter{}, opErr(opFilterTranslate, OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects a non-empty scalar array", filterOpIn, field), err)
			}
			out.Must = append(out.Must, map[string]any{
				"key":   field,
				"match": map[string]any{"any": values},
			})
		default:
			return translatedFilter{}, opErr(opFilterTranslate, OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported filter operator %q for field %q", name, field), nil)
		}
	}
	return out, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func toObjectSlice(value any) ([]map[string]any, error) {
	switch typed := value.(type) {
	case []map[string]any:
		return typed, nil
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected map[string]any in array, got %T", item)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected array of objects, got %T", value)
	}
}

func toScalarSlice(value any) ([]any, error) {
	var raw []any
	switch typed := value.(type) {
	case []any:
		raw = typed
	case []string:
		for _, v := range typed {
			raw = append(raw, v)
		}
	case []int:
		for _, v := range typed {
			raw = append(raw, v)
		}
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
	out := make([]any, 0, len(raw))
	for _, v := range raw {
		scalar, ok := toScalarValue(v)
		if !ok {
			return nil, fmt.Errorf("expected scalar, got %T", v)
		}
		out = append(out, scalar)
	}
	return out, nil
}

// toScalarValue normalises JSON-compatible scalars. Whole floats become
// int64 because qdrant integer payload matches reject 1.0.
func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int64:
		return typed, true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case float32:
		return toScalarValue(float64(typed))
	case float64:
		if typed == float64(int64(typed)) {
			return int64(typed), true
		}
		return typed, true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}
