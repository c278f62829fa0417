package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/slidedeck-backend/internal/app"
)

var rootCmd = &cobra.Command{
	Use:           "assetctl",
	Short:         "Maintenance commands for the slide deck asset store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "assetctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// withApp builds the application from the environment for the duration of fn.
func withApp(fn func(a *app.App) error) error {
	application, err := app.New()
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer application.Close()
	return fn(application)
}
