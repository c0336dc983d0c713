package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/course-rag-backend/internal/embedding"
)

// Record is one stored document with its metadata and embedding.
type Record struct {
	ID        string
	Document  string
	Metadata  map[string]any
	Embedding []float32
}

// Match is a query hit. Distance is cosine distance; lower is closer.
type Match struct {
	Record
	Distance float64
}

type Collection interface {
	Upsert(ctx context.Context, records []Record) error
	// Query returns at most n matches ordered by distance, ties broken by ID.
	Query(ctx context.Context, vector []float32, n int, where map[string]any) ([]Match, error)
	// Get returns records by id; nil ids means every record.
	Get(ctx context.Context, ids []string, where map[string]any) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

type Backend interface {
	Collection(ctx context.Context, name string) (Collection, error)
	Close() error
}

const (
	ProviderMemory   = "memory"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderQdrant   = "qdrant"
)

func CosineDistance(a, b []float32) float64 {
	return 1 - embedding.Cosine(a, b)
}

func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance == matches[j].Distance {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Distance < matches[j].Distance
	})
}

// rankRecords scores candidates against vector and keeps the n closest.
func rankRecords(candidates []Record, vector []float32, n int) []Match {
	if n <= 0 {
		return []Match{}
	}
	matches := make([]Match, 0, len(candidates))
	for _, r := range candidates {
		matches = append(matches, Match{Record: r, Distance: CosineDistance(vector, r.Embedding)})
	}
	sortMatches(matches)
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches
}

// MatchFilter evaluates a Chroma-style where clause against metadata.
// Numbers compare by value regardless of their Go type.
func MatchFilter(meta map[string]any, where map[string]any) (bool, error) {
	for key, cond := range where {
		switch strings.ToLower(key) {
		case "$and", "$or":
			items, err := filterList(cond)
			if err != nil {
				return false, fmt.Errorf("%s: %w", key, err)
			}
			isAnd := strings.EqualFold(key, "$and")
			matched := isAnd
			for _, item := range items {
				ok, err := MatchFilter(meta, item)
				if err != nil {
					return false, err
				}
				if isAnd && !ok {
					matched = false
					break
				}
				if !isAnd && ok {
					matched = true
					break
				}
			}
			if !matched {
				return false, nil
			}
		case "$not":
			sub, ok := cond.(map[string]any)
			if !ok {
				return false, fmt.Errorf("$not expects an object, got %T", cond)
			}
			matched, err := MatchFilter(meta, sub)
			if err != nil {
				return false, err
			}
			if matched {
				return false, nil
			}
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("unsupported filter operator %q", key)
			}
			ok, err := matchField(meta[key], cond)
			if err != nil {
				return false, fmt.Errorf("field %q: %w", key, err)
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func matchField(value any, cond any) (bool, error) {
	ops, isOps := cond.(map[string]any)
	if !isOps {
		return scalarEqual(value, cond), nil
	}
	for op, arg := range ops {
		switch strings.ToLower(op) {
		case "$eq":
			if !scalarEqual(value, arg) {
				return false, nil
			}
		case "$ne":
			if scalarEqual(value, arg) {
				return false, nil
			}
		case "$in":
			list, err := scalarList(arg)
			if err != nil {
				return false, err
			}
			found := false
			for _, candidate := range list {
				if scalarEqual(value, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", op)
		}
	}
	return true, nil
}

func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func filterList(v any) ([]map[string]any, error) {
	switch typed := v.(type) {
	case []map[string]any:
		return typed, nil
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected object, got %T", item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected array of objects, got %T", v)
	}
}

func scalarList(v any) ([]any, error) {
	switch typed := v.(type) {
	case []any:
		return typed, nil
	case []string:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = typed[i]
		}
		return out, nil
	case []int:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = typed[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("$in expects an array, got %T", v)
	}
}

func filterRecords(records []Record, where map[string]any) ([]Record, error) {
	if len(where) == 0 {
		return records, nil
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		ok, err := MatchFilter(r.Metadata, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func cloneMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
