package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/course-rag-backend/internal/app"
	"github.com/yungbote/course-rag-backend/internal/platform/shutdown"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("Server listening", "port", a.Cfg.Port)
		errCh <- a.Run(":" + a.Cfg.Port)
	}()

	select {
	case <-ctx.Done():
		a.Log.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			a.Log.Error("Server failed", "error", err)
			a.Close()
			os.Exit(1)
		}
	}
}
