package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cardsmith/internal"
	"github.com/starford/cardsmith/internal/markup"
	pkgconfig "github.com/starford/cardsmith/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func appOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithCardFile(cmd.String("card")),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := appOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func render(ctx context.Context, cmd *cli.Command) error {
	opts, err := appOptions(cmd)
	if err != nil {
		return err
	}
	format := strings.ToLower(cmd.String("format"))
	path, err := internal.Render(ctx, format, cmd.String("out"), opts...)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.Root().Writer, path)
	return nil
}

func parse(_ context.Context, cmd *cli.Command) error {
	var text string
	if cmd.Args().Present() {
		text = strings.Join(cmd.Args().Slice(), " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(markup.Parse(text))
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := appOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "cardsmith",
		Usage:   "Social post card editor with PNG and animated GIF export",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (defaults are used when it is missing)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "card",
				Usage:   "YAML card file to load (overrides card.path)",
				Sources: cli.EnvVars("CARDSMITH_CARD"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the editor HTTP server (default)",
				Action: serve,
			},
			{
				Name:   "render",
				Usage:  "Export the card once and exit",
				Action: render,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "png or gif",
						Value:   internal.FormatPNG,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output path (default <display-name>.<format>)",
					},
				},
			},
			{
				Name:      "parse",
				Usage:     "Print the styled runs of a message as JSON",
				ArgsUsage: "[text] (reads stdin when omitted)",
				Action:    parse,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
