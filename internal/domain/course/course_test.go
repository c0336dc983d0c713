package course

import (
	"encoding/json"
	"testing"
)

func TestSourceForEmptyURLSerializesNull(t *testing.T) {
	raw, err := json.Marshal(SourceFor("Intro", "  "))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"title":"Intro","url":null}` {
		t.Fatalf("json: got=%s", raw)
	}
}

func TestSourceForKeepsURL(t *testing.T) {
	s := SourceFor("Intro - Lesson 1", "https://example.com/l1")
	if s.URL == nil || *s.URL != "https://example.com/l1" {
		t.Fatalf("url: got=%v", s.URL)
	}
}

func TestLessonByNumber(t *testing.T) {
	c := &Course{Title: "Test Course", Lessons: []Lesson{{Number: 0, Title: "Introduction"}, {Number: 1, Title: "Basics"}}}
	l, ok := c.LessonByNumber(1)
	if !ok || l.Title != "Basics" {
		t.Fatalf("lesson 1: ok=%v got=%+v", ok, l)
	}
	if _, ok := c.LessonByNumber(7); ok {
		t.Fatalf("lesson 7: want missing")
	}
}
