package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

// Metrics holds the service's Prometheus-text instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	apiRequests    *CounterVec
	apiLatency     *HistogramVec
	apiInflight    *Gauge
	llmRequests    *CounterVec
	llmLatency     *HistogramVec
	llmTokens      *CounterVec
	toolCalls      *CounterVec
	vectorSearches *HistogramVec
	ingested       *CounterVec
	redisUp        *Gauge
	redisPing      *Gauge
}

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("rag_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"rag_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("rag_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("rag_llm_requests_total", "Model API calls by model/status.", []string{"model", "status"}),
		llmLatency: NewHistogramVec(
			"rag_llm_request_duration_seconds",
			"Model API latency in seconds.",
			[]string{"model"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		llmTokens: NewCounterVec("rag_llm_tokens_total", "Model tokens by model/kind.", []string{"model", "kind"}),
		toolCalls: NewCounterVec("rag_tool_calls_total", "Tool executions by tool/status.", []string{"tool", "status"}),
		vectorSearches: NewHistogramVec(
			"rag_vector_search_duration_seconds",
			"Vector store query latency by collection.",
			[]string{"collection"},
			nil,
		),
		ingested:  NewCounterVec("rag_ingested_total", "Ingested courses and chunks.", []string{"kind"}),
		redisUp:   NewGauge("rag_redis_up", "1 when the session redis answers ping."),
		redisPing: NewGauge("rag_redis_ping_seconds", "Last redis ping latency."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.toolCalls, m.vectorSearches, m.ingested,
		m.redisUp, m.redisPing,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) IncToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.Inc(tool, status)
}

func (m *Metrics) ObserveVectorSearch(collection string, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorSearches.Observe(dur.Seconds(), collection)
}

func (m *Metrics) AddIngested(courses, chunks int) {
	if m == nil {
		return
	}
	m.ingested.Add(float64(courses), "course")
	m.ingested.Add(float64(chunks), "chunk")
}

// StartRedisCollector pings rdb every interval until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
