// Command bookctl is a terminal client for the book catalog API. Every
// command runs through one cache session.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/humanlog"

	"bookcatalog/internal/cache"
	"bookcatalog/internal/client"
)

// CLI is the complete bookctl command structure.
type CLI struct {
	Server  string        `help:"Base URL of the catalog API" env:"BOOKCTL_SERVER" default:"http://localhost:8080"`
	Timeout time.Duration `help:"Per request timeout" env:"BOOKCTL_TIMEOUT" default:"10s"`
	Retries int           `help:"Retries for failed reads" default:"2"`
	Verbose bool          `short:"v" help:"Log cache state changes"`

	List   ListCmd   `cmd:"" help:"Show one page of books, newest first"`
	All    AllCmd    `cmd:"" help:"Show every book, newest first"`
	Sorted SortedCmd `cmd:"" help:"Show every book sorted by a field"`
	Get    GetCmd    `cmd:"" help:"Show one book"`
	Add    AddCmd    `cmd:"" help:"Create a book"`
	Update UpdateCmd `cmd:"" help:"Change fields of a book"`
	Delete DeleteCmd `cmd:"" help:"Delete a book"`
}

// app is bound into every command's Run method.
type app struct {
	client *client.Client
	cache  *cache.Coordinator
	out    io.Writer
	log    *slog.Logger
}

func newApp(cli *CLI, out io.Writer, log *slog.Logger) *app {
	c := client.New(client.Options{
		BaseURL:    cli.Server,
		UserAgent:  "bookctl",
		Timeout:    cli.Timeout,
		MaxRetries: cli.Retries,
	})
	return &app{
		client: c,
		cache:  cache.New(c, cache.Options{FetchTimeout: cli.Timeout, Logger: log}),
		out:    out,
		log:    log,
	}
}

func initLogging(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})
	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

func main() {
	_ = godotenv.Load(".env.local")

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("bookctl"),
		kong.Description("A terminal client for the book catalog."),
		kong.UsageOnError(),
	)

	log := initLogging(cli.Verbose)
	a := newApp(&cli, os.Stdout, log)
	defer a.cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 4*cli.Timeout)
	defer cancel()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(a); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
