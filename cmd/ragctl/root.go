package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/course-rag-backend/internal/app"
)

// openApp is replaced in tests.
var openApp = app.New

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operate the course materials RAG system from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				return os.Setenv("RAG_CONFIG_FILE", configFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (same keys as the server)")

	root.AddCommand(
		newIngestCmd(),
		newCoursesCmd(),
		newOutlineCmd(),
		newSearchCmd(),
		newAskCmd(),
	)
	return root
}

func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
