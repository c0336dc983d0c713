package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/course-rag-backend/internal/app"
	"github.com/yungbote/course-rag-backend/internal/tools"
	"github.com/yungbote/course-rag-backend/internal/vectorstore"
)

func newIngestCmd() *cobra.Command {
	var clearExisting bool
	cmd := &cobra.Command{
		Use:   "ingest [folder]",
		Short: "Load course documents from a folder (defaults to DOCS_PATH)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				folder := a.Cfg.DocsPath
				if len(args) == 1 {
					folder = args[0]
				}
				courses, chunks, err := a.RAG.AddCourseFolder(cmd.Context(), folder, clearExisting)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d courses with %d chunks from %s\n", courses, chunks, folder)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearExisting, "clear", false, "delete all stored courses before loading")
	return cmd
}

func newCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List loaded courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				stats, err := a.RAG.CourseAnalytics(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d courses\n", stats.TotalCourses)
				for _, title := range stats.CourseTitles {
					fmt.Fprintf(out, "- %s\n", title)
				}
				return nil
			})
		},
	}
}

func newOutlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outline <course name>",
		Short: "Print a course's lessons",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				text, err := tools.NewCourseOutlineTool(a.Store).Execute(cmd.Context(), map[string]any{
					"course_name": strings.Join(args, " "),
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	var (
		courseName string
		lesson     int
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a semantic search over course content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				p := vectorstore.SearchParams{
					Query:      strings.Join(args, " "),
					CourseName: courseName,
				}
				if cmd.Flags().Changed("lesson") {
					p.LessonNumber = &lesson
				}
				if limit > 0 {
					p.Limit = &limit
				}
				res := a.Store.Search(cmd.Context(), p)
				if res.Error != "" {
					return errors.New(res.Error)
				}
				out := cmd.OutOrStdout()
				if res.IsEmpty() {
					fmt.Fprintln(out, "No relevant content found.")
					return nil
				}
				for i, doc := range res.Documents {
					meta := res.Metadata[i]
					title, _ := meta["course_title"].(string)
					header := title
					if n, ok := vectorstore.IntFromMetadata(meta, "lesson_number"); ok {
						header = fmt.Sprintf("%s - Lesson %d", title, n)
					}
					fmt.Fprintf(out, "[%s] distance=%.4f\n%s\n\n", header, res.Distances[i], doc)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&courseName, "course", "", "restrict to a course (partial names resolve)")
	cmd.Flags().IntVar(&lesson, "lesson", 0, "restrict to a lesson number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (defaults to MAX_RESULTS)")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with the full tool-calling pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				answer, sources, err := a.RAG.Query(cmd.Context(), strings.Join(args, " "), "")
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, answer)
				if len(sources) > 0 {
					fmt.Fprintln(out, "\nSources:")
					for _, s := range sources {
						if s.URL != nil {
							fmt.Fprintf(out, "- %s (%s)\n", s.Title, *s.URL)
						} else {
							fmt.Fprintf(out, "- %s\n", s.Title)
						}
					}
				}
				return nil
			})
		},
	}
}
