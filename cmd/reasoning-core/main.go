package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx := context.Background()

	root := &cobra.Command{
		Use:     "reasoning-core",
		Short:   "Behavioral reasoning core for an edge video-surveillance pipeline",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newReplayCommand())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
