package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/goliatone/go-medlocus/cache"
	"github.com/goliatone/go-medlocus/config"
	"github.com/goliatone/go-medlocus/internal/logging"
	"github.com/goliatone/go-medlocus/mockapi"
	"github.com/goliatone/go-medlocus/model"
	"github.com/goliatone/go-medlocus/pkg/di"
	"github.com/goliatone/go-medlocus/queries"
	"github.com/goliatone/go-medlocus/realtime"
)

const version = "0.1.0"

const usage = `medlocus control.

Talks to the medlocus pharmacy API. When the backend does not answer its
health check the built-in mock API is used instead.

Usage:
    medlocusctl health [options]
    medlocusctl kpis [options]
    medlocusctl medicines [options] [--search=<q>]
    medlocusctl sales [options] [--status=<s>] [--search=<q>]
    medlocusctl report [options]
    medlocusctl watch [options] [--duration=<d>]
    medlocusctl serve-mock [--addr=<addr>] [--prefix=<prefix>] [-v]
    medlocusctl -h | --help
    medlocusctl --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<path>        TOML or YAML config file.
    --email=<email>        Login email [default: demo@medlocus.com].
    --password=<password>  Login password [default: demo123].
    --search=<q>           Filter by text.
    --status=<s>           Sale status: completed, pending or cancelled.
    --duration=<d>         How long to watch events [default: 1m].
    --addr=<addr>          Listen address [default: :5000].
    --prefix=<prefix>      Route prefix [default: /api].
    -v                     Verbose logging.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	flag.Set("logtostderr", "true")
	if verbose, _ := opts.Bool("-v"); verbose {
		flag.Set("v", "2")
	}
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve, _ := opts.Bool("serve-mock"); serve {
		err = serveMock(opts)
	} else {
		err = runClient(ctx, opts)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		glog.Flush()
		os.Exit(1)
	}
}

func loadConfig(opts docopt.Opts) (config.Config, error) {
	if path, _ := opts.String("--config"); path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	cfg.ApplyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

func runClient(ctx context.Context, opts docopt.Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logging.New("medlocus")))
	if err != nil {
		return err
	}
	defer container.Close()

	if container.Mocked() {
		fmt.Fprintln(os.Stderr, "backend unavailable, using mock API")
	}

	if health, _ := opts.Bool("health"); health {
		status, err := container.Client().Health(ctx)
		if err != nil {
			return err
		}
		return printJSON(status)
	}

	email, _ := opts.String("--email")
	password, _ := opts.String("--password")
	if _, err := container.Session().Login(ctx, email, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	q := container.Queries()
	switch {
	case flagSet(opts, "kpis"):
		return printResult(q.KPIs(ctx))
	case flagSet(opts, "medicines"):
		search, _ := opts.String("--search")
		return printResult(q.Medicines(ctx, search))
	case flagSet(opts, "sales"):
		status, _ := opts.String("--status")
		search, _ := opts.String("--search")
		return printResult(q.Sales(ctx, model.SaleFilter{Status: status, Search: search}))
	case flagSet(opts, "report"):
		return printResult(q.ReportSummary(ctx))
	case flagSet(opts, "watch"):
		raw, _ := opts.String("--duration")
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		return watch(ctx, container, d)
	}
	return nil
}

func flagSet(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func printResult[T any](v T, err error) error {
	if err != nil {
		return err
	}
	return printJSON(v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// watch prints the KPI list every time a real-time update changes it, and
// every notification, until d elapses or ctx is cancelled.
func watch(ctx context.Context, container *di.Container, d time.Duration) error {
	ch := container.Realtime()
	if ch == nil {
		return fmt.Errorf("real-time is off in the configuration")
	}

	kpis, err := container.Queries().KPIs(ctx)
	if err != nil {
		return err
	}
	printJSON(kpis)

	sub := container.Queries().Watch(queries.KPIKey(), func(e cache.Entry) {
		if e.Status == cache.StatusFresh {
			printJSON(e.Value)
		}
	})
	defer sub.Unsubscribe()

	notes := realtime.OnNotification(ch, func(n model.Notification) {
		fmt.Printf("%s  %s\n", n.CreatedAt, n.Message)
	})
	defer notes.Unsubscribe()

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	if err := ch.Connect(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-ch.Done():
	}
	return nil
}

func serveMock(opts docopt.Opts) error {
	addr, _ := opts.String("--addr")
	prefix, _ := opts.String("--prefix")

	srv := mockapi.New(mockapi.WithPrefix(prefix), mockapi.WithLogger(logging.New("mockapi")))
	glog.Infof("mock API listening on %s%s (login %s / %s)", addr, prefix, mockapi.DemoEmail, mockapi.DemoPassword)
	return http.ListenAndServe(addr, srv)
}
