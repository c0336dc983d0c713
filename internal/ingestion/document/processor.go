package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
)

var ErrEmptyDocument = errors.New("document is empty")

var (
	courseTitleRe      = regexp.MustCompile(`(?i)^course title:\s*(.+)$`)
	courseLinkRe       = regexp.MustCompile(`(?i)^course link:\s*(.+)$`)
	courseInstructorRe = regexp.MustCompile(`(?i)^course instructor:\s*(.+)$`)
	lessonRe           = regexp.MustCompile(`(?i)^lesson\s+(\d+):\s*(.+)$`)
	lessonLinkRe       = regexp.MustCompile(`(?i)^lesson link:\s*(.+)$`)
)

// Processor turns course documents into a Course and its text chunks.
type Processor struct {
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Processor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

func (p *Processor) ChunkSize() int    { return p.chunkSize }
func (p *Processor) ChunkOverlap() int { return p.chunkOverlap }

// ReadFile returns the file as text. Invalid UTF-8 is replaced rather than rejected.
func (p *Processor) ReadFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.TrimPrefix(string(raw), "\ufeff")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}

// ChunkText packs whole sentences into chunks of at most chunkSize
// characters. Consecutive chunks share trailing sentences worth at most
// chunkOverlap characters. A single sentence longer than chunkSize becomes
// its own chunk.
func (p *Processor) ChunkText(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	sentences := splitSentences(text)

	var chunks []string
	i := 0
	for i < len(sentences) {
		var (
			current []string
			size    int
		)
		for j := i; j < len(sentences); j++ {
			space := 0
			if len(current) > 0 {
				space = 1
			}
			total := size + utf8.RuneCountInString(sentences[j]) + space
			if total > p.chunkSize && len(current) > 0 {
				break
			}
			current = append(current, sentences[j])
			size = total
		}
		if len(current) == 0 {
			i++
			continue
		}
		chunks = append(chunks, strings.Join(current, " "))
		if i+len(current) >= len(sentences) {
			break
		}

		overlapSize, overlapSentences := 0, 0
		for k := len(current) - 1; k >= 0; k-- {
			n := utf8.RuneCountInString(current[k])
			if k < len(current)-1 {
				n++
			}
			if overlapSize+n > p.chunkOverlap {
				break
			}
			overlapSize += n
			overlapSentences++
		}
		next := i + len(current) - overlapSentences
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return chunks
}

func (p *Processor) ParseCourseDocument(path string) (*course.Course, []course.CourseChunk, error) {
	content, err := p.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return p.Parse(filepath.Base(path), content)
}

// Parse reads the course header (title, link, instructor) followed by
// "Lesson N: title" sections, each optionally followed by a "Lesson Link:" line.
func (p *Processor) Parse(name, content string) (*course.Course, []course.CourseChunk, error) {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return nil, nil, fmt.Errorf("parse %s: %w", name, ErrEmptyDocument)
	}
	lines := strings.Split(content, "\n")

	c := &course.Course{}
	first := strings.TrimSpace(lines[0])
	if m := courseTitleRe.FindStringSubmatch(first); m != nil {
		c.Title = strings.TrimSpace(m[1])
	} else {
		c.Title = first
	}
	if c.Title == "" {
		c.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	body := 1
	for i := 1; i < len(lines) && i < 4; i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
		case courseLinkRe.MatchString(line):
			c.Link = strings.TrimSpace(courseLinkRe.FindStringSubmatch(line)[1])
		case courseInstructorRe.MatchString(line):
			c.Instructor = strings.TrimSpace(courseInstructorRe.FindStringSubmatch(line)[1])
		default:
			i = len(lines)
			continue
		}
		body = i + 1
	}

	var (
		chunks  []course.CourseChunk
		current *course.Lesson
		buf     []string
	)
	flush := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if text == "" {
			return
		}
		for idx, chunk := range p.ChunkText(text) {
			if idx == 0 {
				chunk = "Lesson " + strconv.Itoa(current.Number) + " content: " + chunk
			}
			chunks = append(chunks, course.CourseChunk{
				Content:      chunk,
				CourseTitle:  c.Title,
				LessonNumber: course.IntPtr(current.Number),
				ChunkIndex:   len(chunks),
			})
		}
	}

	for i := body; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		m := lessonRe.FindStringSubmatch(line)
		if m == nil {
			if current != nil {
				buf = append(buf, lines[i])
			}
			continue
		}
		flush()
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: lesson number %q: %w", name, m[1], err)
		}
		lesson := course.Lesson{Number: n, Title: strings.TrimSpace(m[2])}
		if i+1 < len(lines) {
			if lm := lessonLinkRe.FindStringSubmatch(strings.TrimSpace(lines[i+1])); lm != nil {
				lesson.Link = strings.TrimSpace(lm[1])
				i++
			}
		}
		c.Lessons = append(c.Lessons, lesson)
		current = &c.Lessons[len(c.Lessons)-1]
	}
	flush()

	if len(c.Lessons) == 0 {
		rest := ""
		if body < len(lines) {
			rest = strings.Join(lines[body:], "\n")
		}
		for _, chunk := range p.ChunkText(rest) {
			chunks = append(chunks, course.CourseChunk{
				Content:     chunk,
				CourseTitle: c.Title,
				ChunkIndex:  len(chunks),
			})
		}
	}
	return c, chunks, nil
}
