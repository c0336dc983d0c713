package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultDimension = 384

// HashEmbedder is a deterministic bag-of-features embedding: word tokens and
// their character trigrams are hashed into signed buckets and the result is
// L2-normalised. It needs no model download or network access.
type HashEmbedder struct {
	model string
	dim   int
}

func NewHashEmbedder(model string, dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	if strings.TrimSpace(model) == "" {
		model = "hash"
	}
	return &HashEmbedder{model: model, dim: dim}
}

func (h *HashEmbedder) Dimension() int { return h.dim }
func (h *HashEmbedder) Model() string  { return h.model }

func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		h.add(vec, "w:"+tok, 1.0)
		padded := []rune("#" + tok + "#")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(vec, "g:"+string(padded[i:i+3]), 0.5)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (h *HashEmbedder) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
