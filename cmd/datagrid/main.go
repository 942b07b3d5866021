// Package main is the terminal grid over a remote REST collection.
//
// It loads the collection, then either exports the view to CSV (-export),
// runs an interactive command loop when stdin is a terminal, or prints the
// view once. Configuration is read from CLI flags and a .env file in the
// working directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/maruel/datagrid/internal/buildinfo"
	"github.com/maruel/datagrid/internal/cli"
	"github.com/maruel/datagrid/internal/export"
	"github.com/maruel/datagrid/internal/grid"
	"github.com/maruel/datagrid/internal/logging"
	"github.com/maruel/datagrid/internal/remote"
	"github.com/maruel/datagrid/internal/remote/mock"
	"github.com/maruel/datagrid/internal/sandbox"
	"github.com/maruel/datagrid/internal/store"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "datagrid: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	baseURL := flag.String("url", "", "Base URL of the REST API (e.g., https://jsonplaceholder.typicode.com)")
	collection := flag.String("path", remote.DefaultPath, "Collection path under the base URL")
	columns := flag.String("columns", "", "YAML column manifest; defaults to title, body and age")
	filter := flag.String("filter", "", "Initial filter text")
	sortFlag := flag.String("sort", "", "Initial sort as field[:asc|desc]")
	exportPath := flag.String("export", "", "Write the view as CSV to this file and exit")
	delim := flag.String("delim", ",", "CSV delimiter")
	timeout := flag.Duration("timeout", remote.DefaultTimeout, "Per request timeout")
	rps := flag.Float64("rps", 0, "Maximum requests per second to the remote; 0 means unlimited")
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	printSchema := flag.Bool("print-schema", false, "Print the JSON schema of the column manifest and exit")
	useMock := flag.Bool("mock", false, "Use an in-memory collection of sample posts instead of -url")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		buildinfo.Print(os.Stdout, "datagrid")
		return nil
	}
	if *printSchema {
		b, err := grid.ManifestSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Printf("%s\n", b)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	slog.SetDefault(logging.New(ll))

	// Override with .env file values if not explicitly set via flags
	env, err := godotenv.Read(".env")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read .env: %w", err)
		}
		env = map[string]string{}
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if !set["url"] {
		if v := env["DATAGRID_URL"]; v != "" {
			*baseURL = v
		}
	}
	if !set["path"] {
		if v := env["DATAGRID_PATH"]; v != "" {
			*collection = v
		}
	}
	if !set["log-level"] {
		if v := env["LOG_LEVEL"]; v != "" {
			*logLevel = v
		}
	}
	if err := logging.SetLevel(ll, *logLevel); err != nil {
		return err
	}

	cols := grid.DefaultColumns()
	if *columns != "" {
		m, err := grid.ParseManifest(*columns)
		if err != nil {
			return err
		}
		cols = m.Columns
	}
	comma, err := cli.ParseDelimiter(*delim)
	if err != nil {
		return err
	}

	var coll remote.Collection
	switch {
	case *useMock:
		coll = mock.New(sandbox.SamplePosts()...)
	case *baseURL == "":
		return errors.New("-url is required; set DATAGRID_URL in .env or use -mock")
	default:
		coll, err = remote.NewClient(*baseURL,
			remote.WithPath(*collection),
			remote.WithHTTPClient(&http.Client{Timeout: *timeout}),
			remote.WithRateLimit(*rps, 1),
			remote.WithHeader("User-Agent", "datagrid/"+buildinfo.Get().Version),
		)
		if err != nil {
			return err
		}
	}

	st := store.New(coll, cols)
	st.SetFilterText(*filter)
	if *sortFlag != "" {
		field, dir, err := cli.ParseSortFlag(*sortFlag)
		if err != nil {
			return err
		}
		if err := st.SetSort(field, dir); err != nil {
			return err
		}
	}

	interactive := *exportPath == "" && isatty.IsTerminal(os.Stdin.Fd())
	start := time.Now()
	if err := st.Load(ctx); err != nil {
		if !interactive {
			return fmt.Errorf("failed to load collection: %w", err)
		}
		// The prior (empty) collection is kept; "load" retries.
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
	} else {
		slog.InfoContext(ctx, "Loaded collection", "count", st.Len(), "duration", time.Since(start).Round(time.Millisecond))
	}

	opts := export.Options{Comma: comma}
	if *exportPath != "" {
		n, err := cli.WriteCSV(*exportPath, cols, st.View(), &opts)
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		slog.InfoContext(ctx, "Exported view", "path", *exportPath, "rows", n)
		return nil
	}

	sh := cli.NewShell(st, os.Stdout, "datagrid> ")
	sh.Export = opts
	if err := sh.Print(); err != nil {
		return err
	}
	if !interactive {
		return nil
	}
	return sh.Run(ctx, os.Stdin)
}
