package course

import "strings"

// Lesson is one numbered section of a course document.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is identified by its Title.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

func (c *Course) LessonByNumber(n int) (Lesson, bool) {
	if c == nil {
		return Lesson{}, false
	}
	for _, l := range c.Lessons {
		if l.Number == n {
			return l, true
		}
	}
	return Lesson{}, false
}

// CourseChunk is a bounded passage of course text. ChunkIndex is global
// within the course; LessonNumber is nil for documents without lessons.
type CourseChunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
}

// Source is a citation returned alongside an answer.
type Source struct {
	Title string  `json:"title"`
	URL   *string `json:"url"`
}

func SourceFor(title, url string) Source {
	s := Source{Title: title}
	if u := strings.TrimSpace(url); u != "" {
		s.URL = &u
	}
	return s
}

func IntPtr(v int) *int { return &v }
