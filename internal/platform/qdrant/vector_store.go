package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/course-rag-backend/internal/platform/ctxutil"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

const (
	payloadNamespaceKey = "_rag_namespace"
	payloadRecordIDKey  = "_rag_record_id"
	maxErrorBodyBytes   = 1024
	scrollPageSize      = 256
)

var pointIDNamespaceUUID = uuid.MustParse("6d0c3f6e-3a55-4c1c-9d0e-2b8f4a7e51c2")

// Point is a record written to or read back from a namespace. Payload never
// carries the store's internal bookkeeping keys.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorStore scopes every call to a namespace inside one qdrant collection.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, points []Point) error
	Search(ctx context.Context, namespace string, vector []float32, limit int, filter map[string]any) ([]ScoredPoint, error)
	// Scroll returns payloads (without vectors) in the namespace matching ids
	// and filter. An empty ids slice means no id restriction.
	Scroll(ctx context.Context, namespace string, ids []string, filter map[string]any) ([]Point, error)
	Count(ctx context.Context, namespace string) (int, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

type vectorStore struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	nsPrefix string
	distance string
	http     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantPointItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewVectorStore(ctx context.Context, log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg = cfg.WithDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &vectorStore{
		log:      log.With("service", "QdrantVectorStore"),
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		nsPrefix: cfg.NamespacePrefix,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := s.verifyReady(ctx); err != nil {
		return nil, err
	}

	log.Info(
		"Qdrant vector store selected",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"namespace_prefix", s.nsPrefix,
		"vector_dim", cfg.VectorDim,
		"distance", s.distance,
	)
	return s, nil
}

func (s *vectorStore) Upsert(ctx context.Context, namespace string, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}

	qualifiedNS := s.qualifyNamespace(namespace)
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		recordID := strings.TrimSpace(p.ID)
		if recordID == "" {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Vector) != s.cfg.VectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("point %q dimension mismatch: expected=%d got=%d", recordID, s.cfg.VectorDim, len(p.Vector)), nil)
		}
		payload := clonePayload(p.Payload)
		payload[payloadNamespaceKey] = qualifiedNS
		payload[payloadRecordIDKey] = recordID
		body = append(body, map[string]any{
			"id":      s.pointID(qualifiedNS, recordID),
			"vector":  p.Vector,
			"payload": payload,
		})
	}

	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": body}, nil)
}

func (s *vectorStore) Search(ctx context.Context, namespace string, vector []float32, limit int, filter map[string]any) ([]ScoredPoint, error) {
	const op = "search"
	if len(vector) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vector)), nil)
	}
	if limit <= 0 {
		return []ScoredPoint{}, nil
	}

	qualifiedNS := s.qualifyNamespace(namespace)
	qdrantFilter, err := s.scopedFilter(qualifiedNS, nil, filter)
	if err != nil {
		var typed *OperationError
		if errors.As(err, &typed) && typed.Code == OperationErrorUnsupportedFilter {
			s.log.Warn("qdrant search filter unsupported", "namespace", qualifiedNS, "error", err)
		}
		return nil, err
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
		"filter":       qdrantFilter,
	}
	var raw []qdrantPointItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]ScoredPoint, 0, len(raw))
	for _, item := range raw {
		id := extractRecordID(item)
		if id == "" {
			continue
		}
		out = append(out, ScoredPoint{
			ID:      id,
			Score:   s.normalizeScore(item.Score),
			Payload: stripInternal(item.Payload),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *vectorStore) Scroll(ctx context.Context, namespace string, ids []string, filter map[string]any) ([]Point, error) {
	const op = "scroll"
	qualifiedNS := s.qualifyNamespace(namespace)
	qdrantFilter, err := s.scopedFilter(qualifiedNS, ids, filter)
	if err != nil {
		return nil, err
	}

	var out []Point
	var offset json.RawMessage
	for {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
			"filter":       qdrantFilter,
		}
		if len(offset) > 0 {
			req["offset"] = offset
		}
		var page struct {
			Points         []qdrantPointItem `json:"points"`
			NextPageOffset json.RawMessage   `json:"next_page_offset"`
		}
		if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/scroll"), req, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Points {
			id := extractRecordID(item)
			if id == "" {
				continue
			}
			out = append(out, Point{ID: id, Payload: stripInternal(item.Payload)})
		}
		next := strings.TrimSpace(string(page.NextPageOffset))
		if next == "" || next == "null" {
			break
		}
		offset = page.NextPageOffset
	}
	if out == nil {
		out = []Point{}
	}
	return out, nil
}

func (s *vectorStore) Count(ctx context.Context, namespace string) (int, error) {
	const op = "count"
	qualifiedNS := s.qualifyNamespace(namespace)
	qdrantFilter, err := s.scopedFilter(qualifiedNS, nil, nil)
	if err != nil {
		return 0, err
	}
	var result struct {
		Count int `json:"count"`
	}
	req := map[string]any{"filter": qdrantFilter, "exact": true}
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/count"), req, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (s *vectorStore) DeleteNamespace(ctx context.Context, namespace string) error {
	const op = "delete_namespace"
	qualifiedNS := s.qualifyNamespace(namespace)
	qdrantFilter, err := s.scopedFilter(qualifiedNS, nil, nil)
	if err != nil {
		return err
	}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), map[string]any{"filter": qdrantFilter}, nil)
}

func (s *vectorStore) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	readyReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}

	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err = s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &result)
	var typed *OperationError
	if errors.As(err, &typed) && typed.StatusCode == http.StatusNotFound && s.cfg.CreateIfMissing {
		return s.createCollection(ctx)
	}
	if err != nil {
		return err
	}

	size := result.Config.Params.Vectors.Size
	if size != 0 && size != s.cfg.VectorDim {
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message: fmt.Sprintf("qdrant collection %q vector size mismatch: expected=%d actual=%d",
				s.cfg.Collection, s.cfg.VectorDim, size),
		}
	}
	s.distance = strings.TrimSpace(result.Config.Params.Vectors.Distance)
	return nil
}

func (s *vectorStore) createCollection(ctx context.Context) error {
	const op = "create_collection"
	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
		return err
	}
	s.distance = "Cosine"
	s.log.Info("Qdrant collection created", "collection", s.cfg.Collection, "vector_dim", s.cfg.VectorDim)
	return nil
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := OperationErrorQueryFailed
		if resp.StatusCode == http.StatusNotFound {
			code = OperationErrorNotFound
		}
		return &OperationError{
			Code:       code,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func stripInternal(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == payloadNamespaceKey || k == payloadRecordIDKey {
			continue
		}
		out[k] = v
	}
	return out
}

func (s *vectorStore) qualifyNamespace(namespace string) string {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		return s.nsPrefix
	}
	return s.nsPrefix + ":" + ns
}

func (s *vectorStore) pointID(qualifiedNS, recordID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(qualifiedNS+"|"+recordID)).String()
}

func (s *vectorStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func (s *vectorStore) scopedFilter(qualifiedNS string, ids []string, filter map[string]any) (map[string]any, error) {
	base := translatedFilter{
		Must: []any{matchCondition(payloadNamespaceKey, qualifiedNS)},
	}
	if len(ids) > 0 {
		values := make([]any, 0, len(ids))
		for _, id := range ids {
			values = append(values, id)
		}
		base.Must = append(base.Must, map[string]any{
			"key":   payloadRecordIDKey,
			"match": map[string]any{"any": values},
		})
	}
	if len(filter) == 0 {
		return base.asMap(), nil
	}
	translated, err := translateFilterMap(filter)
	if err != nil {
		return nil, err
	}
	base.merge(translated)
	return base.asMap(), nil
}

func extractRecordID(item qdrantPointItem) string {
	if id, ok := item.Payload[payloadRecordIDKey].(string); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return decodePointID(item.ID)
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}

// normalizeScore maps qdrant scores onto "higher is closer" so callers can
// derive a distance uniformly.
func (s *vectorStore) normalizeScore(score float64) float64 {
	switch strings.ToLower(s.distance) {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	default:
		return score
	}
}
