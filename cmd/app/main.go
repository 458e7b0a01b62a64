package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gts-portal/internal"
	pkgconfig "github.com/starford/gts-portal/pkg/config"
)

type runFunc func(ctx context.Context, opts ...internal.Option) error

// withConfig loads the config file named by --config and hands it to fn.
// Without a config file the defaults apply.
func withConfig(fn runFunc, what string) func(context.Context, *cli.Command) error {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadIfExists(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
		}

		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("%s error: %w", what, err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "gts-portal",
		Usage:  "Mock data service and push notifications for the GTS leisure rental portals",
		Action: withConfig(internal.Run, "app run"),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API (default)",
				Action: withConfig(internal.Run, "app run"),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: withConfig(internal.RunMCP, "mcp"),
			},
			{
				Name:   "reset",
				Usage:  "Reseed every table and overwrite the persisted mirror",
				Action: withConfig(internal.ResetStore, "reset"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
