package main

import (
	"context"
	"fmt"
	"os"

	"gitlab.com/timkado/api/account-cache-service/internal/bootstrap"
	"gitlab.com/timkado/api/account-cache-service/pkg/contextkeys"
)

func main() {
	ctx := context.WithValue(context.Background(), contextkeys.RequestIDKey, "app-main")

	app, cleanup, err := bootstrap.InitializeApp(ctx)
	if err != nil {
		// The application logger is not available yet.
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Application run failed: %v\n", err)
		cleanup()
		os.Exit(1)
	}
	fmt.Println("Application exited gracefully.")
}
