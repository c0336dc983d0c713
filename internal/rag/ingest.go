package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/course-rag-backend/internal/domain/course"
	errs "github.com/yungbote/course-rag-backend/internal/pkg/errors"
)

const parseConcurrency = 4

// IsCourseFile reports whether path has an extension the folder loader reads.
func IsCourseFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// AddCourseDocument parses one file and stores its metadata and chunks.
func (s *System) AddCourseDocument(ctx context.Context, path string) (*course.Course, int, error) {
	c, chunks, err := s.processor.ParseCourseDocument(path)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.addParsed(ctx, c, chunks); err != nil {
		return nil, 0, err
	}
	return c, len(chunks), nil
}

// AddNewCourseDocument is AddCourseDocument that skips courses already in the
// catalog. added is false when the course was skipped.
func (s *System) AddNewCourseDocument(ctx context.Context, path string) (added bool, err error) {
	c, chunks, err := s.processor.ParseCourseDocument(path)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	existing, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return false, fmt.Errorf("list courses: %w", err)
	}
	for _, t := range existing {
		if t == c.Title {
			s.log.Debug("course already loaded", "course_title", c.Title, "path", path)
			return false, nil
		}
	}
	if err := s.addParsed(ctx, c, chunks); err != nil {
		return false, err
	}
	return true, nil
}

func (s *System) addParsed(ctx context.Context, c *course.Course, chunks []course.CourseChunk) error {
	if err := s.store.AddCourseMetadata(ctx, c); err != nil {
		return fmt.Errorf("add course %q: %w", c.Title, err)
	}
	if err := s.store.AddCourseContent(ctx, chunks); err != nil {
		return fmt.Errorf("add content for %q: %w", c.Title, err)
	}
	s.metrics.AddIngested(1, len(chunks))
	s.log.Info("course ingested", "course_title", c.Title, "chunks", len(chunks))
	return nil
}

type parsedFile struct {
	path   string
	course *course.Course
	chunks []course.CourseChunk
}

// AddCourseFolder loads every course file in folder. Files are parsed
// concurrently and stored in file-name order; courses whose title is already
// present are skipped, and files that fail to parse are logged and skipped.
func (s *System) AddCourseFolder(ctx context.Context, folder string, clearExisting bool) (courses, chunks int, err error) {
	info, err := os.Stat(folder)
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, fmt.Errorf("course folder %s: %w", folder, errs.ErrNotFound)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("course folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return 0, 0, fmt.Errorf("course folder %s: not a directory: %w", folder, errs.ErrInvalidArgument)
	}

	if clearExisting {
		s.log.Info("clearing existing course data")
		if err := s.store.ClearAllData(ctx); err != nil {
			return 0, 0, err
		}
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, 0, fmt.Errorf("read course folder %s: %w", folder, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsCourseFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(folder, e.Name()))
	}
	sort.Strings(paths)

	parsed := make([]*parsedFile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseConcurrency)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			c, ch, perr := s.processor.ParseCourseDocument(p)
			if perr != nil {
				s.log.Warn("skipping course file", "path", p, "error", perr)
				return nil
			}
			parsed[i] = &parsedFile{path: p, course: c, chunks: ch}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	existing, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list courses: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}

	for _, pf := range parsed {
		if pf == nil {
			continue
		}
		if _, ok := seen[pf.course.Title]; ok {
			s.log.Debug("course already loaded", "course_title", pf.course.Title, "path", pf.path)
			continue
		}
		if err := s.addParsed(ctx, pf.course, pf.chunks); err != nil {
			s.log.Warn("failed to store course", "path", pf.path, "error", err)
			continue
		}
		seen[pf.course.Title] = struct{}{}
		courses++
		chunks += len(pf.chunks)
	}
	return courses, chunks, nil
}
