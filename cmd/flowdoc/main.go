// Command flowdoc checks, formats and inspects flow documents and runs
// the collaboration hub.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/config"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config   string   `short:"c" type:"existingfile" help:"Settings file (YAML or JSON)."`
	Set      []string `placeholder:"KEY=VALUE" sep:"none" help:"Override a setting, e.g. --set collab.mode=pull."`
	LogLevel string   `default:"info" enum:"debug,info,warn,error" help:"Log level (${enum})."`
}

// CLI is the command tree.
type CLI struct {
	Globals

	Validate ValidateCmd `cmd:"" help:"Check documents for errors."`
	Fmt      FmtCmd      `cmd:"" help:"Rewrite documents in canonical form."`
	Stats    StatsCmd    `cmd:"" help:"Summarize documents."`
	Watch    WatchCmd    `cmd:"" help:"Report documents edited in a store directory."`
	Serve    ServeCmd    `cmd:"" help:"Run the collaboration hub."`
}

// app is what commands run against.
type app struct {
	ctx      context.Context
	out      io.Writer
	logger   *slog.Logger
	settings config.Settings
}

func newApp(ctx context.Context, g Globals, stdout, stderr io.Writer) (*app, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.New(nil)
	if g.Config != "" {
		var err error
		if cfg, err = config.FromFile(g.Config); err != nil {
			return nil, err
		}
	}
	over, err := config.ParseOverrides(g.Set)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(cfg.Merge(over))
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return &app{ctx: ctx, out: stdout, logger: logger, settings: settings}, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	exit := -1
	parser, err := kong.New(&cli,
		kong.Name("flowdoc"),
		kong.Description("Tools for flow documents."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exit = code }),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if exit >= 0 {
		return exit
	}
	if err != nil {
		fmt.Fprintf(stderr, "flowdoc: %v\n", err)
		return 2
	}

	a, err := newApp(ctx, cli.Globals, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "flowdoc: %v\n", err)
		return 2
	}
	if err := kctx.Run(a); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(stderr, "flowdoc: %v\n", err)
		}
		return 1
	}
	return 0
}

// errReported marks failures whose details were already printed.
var errReported = errors.New("reported")

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
