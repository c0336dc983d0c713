package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	"github.com/yungbote/course-rag-backend/internal/embedding"
	"github.com/yungbote/course-rag-backend/internal/observability"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

const (
	CatalogCollection = "course_catalog"
	ContentCollection = "course_content"
)

// SearchResults mirrors a single-query result set. Error is set instead of
// returning a Go error so tools can hand it straight to the model.
type SearchResults struct {
	Documents []string
	Metadata  []map[string]any
	Distances []float64
	Error     string
}

func (r SearchResults) IsEmpty() bool { return len(r.Documents) == 0 }

func EmptyResults(errMsg string) SearchResults {
	return SearchResults{
		Documents: []string{},
		Metadata:  []map[string]any{},
		Distances: []float64{},
		Error:     errMsg,
	}
}

func resultsFromMatches(matches []Match) SearchResults {
	out := EmptyResults("")
	for _, m := range matches {
		out.Documents = append(out.Documents, m.Document)
		out.Metadata = append(out.Metadata, m.Metadata)
		out.Distances = append(out.Distances, m.Distance)
	}
	return out
}

type SearchParams struct {
	Query        string
	CourseName   string
	LessonNumber *int
	// Limit overrides the store's default result count when set.
	Limit *int
}

// CourseOutline is the catalog view of one course.
type CourseOutline struct {
	Title      string
	CourseLink string
	Instructor string
	Lessons    []course.Lesson
}

type Store struct {
	log        *logger.Logger
	backend    Backend
	embedder   embedding.Embedder
	catalog    Collection
	content    Collection
	maxResults int
	metrics    *observability.Metrics
}

func NewStore(ctx context.Context, log *logger.Logger, backend Backend, embedder embedding.Embedder, maxResults int) (*Store, error) {
	catalog, err := backend.Collection(ctx, CatalogCollection)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", CatalogCollection, err)
	}
	content, err := backend.Collection(ctx, ContentCollection)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ContentCollection, err)
	}
	return &Store{
		log:        log.With("service", "VectorStore"),
		backend:    backend,
		embedder:   embedder,
		catalog:    catalog,
		content:    content,
		maxResults: maxResults,
	}, nil
}

func (s *Store) WithMetrics(m *observability.Metrics) *Store {
	s.metrics = m
	return s
}

func (s *Store) MaxResults() int { return s.maxResults }

func (s *Store) Close() error { return s.backend.Close() }

// Search resolves the optional course name, applies course/lesson filters and
// queries the content collection.
func (s *Store) Search(ctx context.Context, p SearchParams) SearchResults {
	ctx, end := observability.StartSpan(ctx, "vectorstore.Search",
		attribute.String("course_name", p.CourseName),
		attribute.Bool("lesson_filter", p.LessonNumber != nil),
	)
	var spanErr error
	defer func() { end(&spanErr) }()

	courseTitle := ""
	if p.CourseName != "" {
		title, ok := s.ResolveCourseName(ctx, p.CourseName)
		if !ok {
			return EmptyResults(fmt.Sprintf("No course found matching '%s'", p.CourseName))
		}
		courseTitle = title
	}

	limit := s.maxResults
	if p.Limit != nil {
		limit = *p.Limit
	}

	vec, err := embedding.EmbedOne(ctx, s.embedder, p.Query)
	if err != nil {
		spanErr = err
		return EmptyResults(fmt.Sprintf("Search error: %v", err))
	}

	start := time.Now()
	matches, err := s.content.Query(ctx, vec, limit, BuildFilter(courseTitle, p.LessonNumber))
	s.metrics.ObserveVectorSearch(ContentCollection, time.Since(start))
	if err != nil {
		spanErr = err
		s.log.Warn("content search failed", "error", err)
		return EmptyResults(fmt.Sprintf("Search error: %v", err))
	}
	for i := range matches {
		normalizeMetadata(matches[i].Metadata)
	}
	return resultsFromMatches(matches)
}

// ResolveCourseName returns the title of the catalog entry nearest to name.
// It only reports false when the catalog is empty or unreachable.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, bool) {
	vec, err := embedding.EmbedOne(ctx, s.embedder, name)
	if err != nil {
		s.log.Warn("course name embedding failed", "error", err)
		return "", false
	}
	start := time.Now()
	matches, err := s.catalog.Query(ctx, vec, 1, nil)
	s.metrics.ObserveVectorSearch(CatalogCollection, time.Since(start))
	if err != nil {
		s.log.Warn("course name resolution failed", "course_name", name, "error", err)
		return "", false
	}
	if len(matches) == 0 {
		return "", false
	}
	if title, ok := matches[0].Metadata["title"].(string); ok && title != "" {
		return title, true
	}
	return matches[0].ID, true
}

// BuildFilter returns nil, a single-field filter, or an $and of both.
func BuildFilter(courseTitle string, lessonNumber *int) map[string]any {
	switch {
	case courseTitle == "" && lessonNumber == nil:
		return nil
	case lessonNumber == nil:
		return map[string]any{"course_title": courseTitle}
	case courseTitle == "":
		return map[string]any{"lesson_number": *lessonNumber}
	default:
		return map[string]any{"$and": []map[string]any{
			{"course_title": courseTitle},
			{"lesson_number": *lessonNumber},
		}}
	}
}

func (s *Store) AddCourseMetadata(ctx context.Context, c *course.Course) error {
	lessons := c.Lessons
	if lessons == nil {
		lessons = []course.Lesson{}
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("encode lessons: %w", err)
	}
	vec, err := embedding.EmbedOne(ctx, s.embedder, c.Title)
	if err != nil {
		return fmt.Errorf("embed course title: %w", err)
	}
	rec := Record{
		ID:       c.Title,
		Document: c.Title,
		Metadata: map[string]any{
			"title":        c.Title,
			"instructor":   c.Instructor,
			"course_link":  c.Link,
			"lessons_json": string(lessonsJSON),
			"lesson_count": len(c.Lessons),
		},
		Embedding: vec,
	}
	if err := s.catalog.Upsert(ctx, []Record{rec}); err != nil {
		return fmt.Errorf("add course metadata: %w", err)
	}
	return nil
}

func (s *Store) AddCourseContent(ctx context.Context, chunks []course.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(chunks))
	}

	records := make([]Record, len(chunks))
	for i, ch := range chunks {
		meta := map[string]any{
			"course_title": ch.CourseTitle,
			"chunk_index":  ch.ChunkIndex,
		}
		if ch.LessonNumber != nil {
			meta["lesson_number"] = *ch.LessonNumber
		}
		records[i] = Record{
			ID:        fmt.Sprintf("%s_%d", strings.ReplaceAll(ch.CourseTitle, " ", "_"), ch.ChunkIndex),
			Document:  ch.Content,
			Metadata:  meta,
			Embedding: vecs[i],
		}
	}
	if err := s.content.Upsert(ctx, records); err != nil {
		return fmt.Errorf("add course content: %w", err)
	}
	return nil
}

func (s *Store) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	recs, err := s.catalog.Get(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	titles := make([]string, 0, len(recs))
	for _, r := range recs {
		titles = append(titles, r.ID)
	}
	return titles, nil
}

func (s *Store) CourseCount(ctx context.Context) (int, error) {
	n, err := s.catalog.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return n, nil
}

// AllCoursesMetadata returns catalog metadata with lessons decoded into a
// "lessons" entry in place of lessons_json.
func (s *Store) AllCoursesMetadata(ctx context.Context) ([]map[string]any, error) {
	recs, err := s.catalog.Get(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list course metadata: %w", err)
	}
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		meta := cloneMetadata(r.Metadata)
		if raw, ok := meta["lessons_json"].(string); ok {
			var lessons []course.Lesson
			if err := json.Unmarshal([]byte(raw), &lessons); err == nil {
				meta["lessons"] = lessons
				delete(meta, "lessons_json")
			}
		}
		out = append(out, meta)
	}
	return out, nil
}

func (s *Store) CourseOutline(ctx context.Context, name string) (*CourseOutline, bool) {
	title, ok := s.ResolveCourseName(ctx, name)
	if !ok {
		return nil, false
	}
	rec, ok := s.catalogRecord(ctx, title)
	if !ok {
		return nil, false
	}
	outline := &CourseOutline{
		Title:      stringField(rec.Metadata, "title", title),
		CourseLink: stringField(rec.Metadata, "course_link", ""),
		Instructor: stringField(rec.Metadata, "instructor", ""),
		Lessons:    decodeLessons(rec.Metadata),
	}
	return outline, true
}

// CourseLink returns "" for unknown courses.
func (s *Store) CourseLink(ctx context.Context, title string) string {
	rec, ok := s.catalogRecord(ctx, title)
	if !ok {
		return ""
	}
	return stringField(rec.Metadata, "course_link", "")
}

// LessonLink returns "" when the course or lesson is unknown.
func (s *Store) LessonLink(ctx context.Context, title string, lessonNumber int) string {
	rec, ok := s.catalogRecord(ctx, title)
	if !ok {
		return ""
	}
	for _, l := range decodeLessons(rec.Metadata) {
		if l.Number == lessonNumber {
			return l.Link
		}
	}
	return ""
}

func (s *Store) ClearAllData(ctx context.Context) error {
	if err := s.catalog.Reset(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", CatalogCollection, err)
	}
	if err := s.content.Reset(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", ContentCollection, err)
	}
	return nil
}

func (s *Store) catalogRecord(ctx context.Context, title string) (Record, bool) {
	recs, err := s.catalog.Get(ctx, []string{title}, nil)
	if err != nil {
		s.log.Warn("catalog lookup failed", "course_title", title, "error", err)
		return Record{}, false
	}
	if len(recs) == 0 {
		return Record{}, false
	}
	return recs[0], true
}

func decodeLessons(meta map[string]any) []course.Lesson {
	raw, _ := meta["lessons_json"].(string)
	if raw == "" {
		return []course.Lesson{}
	}
	var lessons []course.Lesson
	if err := json.Unmarshal([]byte(raw), &lessons); err != nil {
		return []course.Lesson{}
	}
	return lessons
}

func stringField(meta map[string]any, key, def string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return def
}

// normalizeMetadata turns whole-number floats (from JSON round trips) back
// into ints for the integer metadata fields.
func normalizeMetadata(meta map[string]any) {
	for _, key := range []string{"lesson_number", "chunk_index", "lesson_count"} {
		switch v := meta[key].(type) {
		case float64:
			meta[key] = int(v)
		case int64:
			meta[key] = int(v)
		case json.Number:
			if i, err := v.Int64(); err == nil {
				meta[key] = int(i)
			}
		}
	}
}

// IntFromMetadata reads an integer metadata value regardless of its JSON
// decoding.
func IntFromMetadata(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
