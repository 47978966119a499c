// Command goauth-client drives a goAuthClient Engine from the shell.
//
// Usage:
//
//	goauth-client [flags] login <username> <password>
//	goauth-client [flags] register <username> <password>
//	goauth-client [flags] profile
//	goauth-client [flags] logout
//	goauth-client [flags] status
//	goauth-client -demo demo
//
// Credentials persist between invocations through the selected store (a file
// under the user config directory by default). -demo starts an in-process
// fake API with the user demo/demo-password.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/apitest"
	"github.com/MrEthical07/goAuthClient/internal/logging"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

const (
	demoUser     = "demo"
	demoPassword = "demo-password"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	baseURL     string
	storeDriver string
	storePath   string
	redisAddr   string
	clientID    string
	logLevel    string
	demo        bool
	showMetrics bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("goauth-client", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.baseURL, "base-url", "", "API base URL; overrides the config file")
	fs.StringVar(&opts.storeDriver, "store", "", "credential store: memory, file, sqlite or redis (default file)")
	fs.StringVar(&opts.storePath, "path", "", "file or sqlite store path")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty with -store=redis, REDIS_ADDR env or miniredis is used")
	fs.StringVar(&opts.clientID, "client-id", "", "store key for this client")
	fs.StringVar(&opts.logLevel, "log-level", "", "enable logging to stderr at this level")
	fs.BoolVar(&opts.demo, "demo", false, "run against an in-process fake API")
	fs.BoolVar(&opts.showMetrics, "metrics", false, "print non-zero counters after the command")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: goauth-client [flags] login|register|profile|logout|status|demo [args]")
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	var fake *apitest.Server
	if opts.demo {
		fake = apitest.New(apitest.Options{AccessTTL: time.Minute})
		defer fake.Close()
		fake.AddUser(demoUser, demoPassword)
		cfg.API.BaseURL = fake.URL()
		fmt.Fprintf(stdout, "using fake API at %s (user %s/%s)\n", fake.URL(), demoUser, demoPassword)
	}

	if cfg.Store.Driver == goAuthClient.StoreRedis && cfg.Store.RedisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(stderr, "failed to start miniredis: %v\n", err)
			return 1
		}
		defer mr.Close()
		cfg.Store.RedisAddr = mr.Addr()
		fmt.Fprintf(stdout, "using miniredis at %s\n", mr.Addr())
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	builder := goAuthClient.New().WithConfig(cfg)
	if opts.logLevel != "" {
		builder = builder.WithLogger(logging.NewWithWriter(logging.Config{Level: opts.logLevel, Format: "text"}, stderr))
	}
	if opts.showMetrics {
		builder = builder.WithMetricsEnabled(true).WithLatencyHistograms(true)
	}

	ctx = goAuthClient.WithRequestID(ctx, uuid.NewString())
	engine, err := builder.Build(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "start: %v\n", err)
		return 1
	}
	defer engine.Close()

	code := dispatch(ctx, engine, fake, fs.Args(), stdout, stderr)
	if opts.showMetrics {
		printMetrics(stdout, engine.MetricsSnapshot())
	}
	return code
}

func loadConfig(opts options) (goAuthClient.Config, error) {
	cfg := goAuthClient.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := goAuthClient.LoadConfig(opts.configPath)
		if err != nil {
			return goAuthClient.Config{}, err
		}
		cfg = loaded
	}

	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}
	if opts.storeDriver != "" {
		cfg.Store.Driver = goAuthClient.StoreDriver(opts.storeDriver)
	}
	if opts.storePath != "" {
		cfg.Store.Path = opts.storePath
	}
	if opts.redisAddr != "" {
		cfg.Store.RedisAddr = opts.redisAddr
	} else if cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if opts.clientID != "" {
		cfg.Store.ClientID = opts.clientID
	}

	return cfg, nil
}

func dispatch(ctx context.Context, engine *goAuthClient.Engine, fake *apitest.Server, args []string, stdout, stderr io.Writer) int {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login", "register":
		if len(rest) != 2 {
			fmt.Fprintf(stderr, "usage: goauth-client %s <username> <password>\n", cmd)
			return 2
		}
		auth := engine.Login
		if cmd == "register" {
			auth = engine.Register
		}
		res, err := auth(ctx, rest[0], rest[1])
		if err != nil {
			return fail(stderr, res.Message, err)
		}
		fmt.Fprintln(stdout, res.Message)
		return 0

	case "profile":
		res, err := engine.FetchProfile(ctx)
		if err != nil {
			return fail(stderr, "", err)
		}
		fmt.Fprintln(stdout, res.Message)
		return 0

	case "logout":
		if err := engine.Logout(ctx); err != nil {
			return fail(stderr, "", err)
		}
		fmt.Fprintln(stdout, "Logged out.")
		return 0

	case "status":
		printStatus(stdout, engine.Status())
		return 0

	case "demo":
		if fake == nil {
			fmt.Fprintln(stderr, "demo requires -demo")
			return 2
		}
		return runDemo(ctx, engine, fake, stdout, stderr)

	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return 2
	}
}

// runDemo walks one session through login, a transparent refresh and logout.
func runDemo(ctx context.Context, engine *goAuthClient.Engine, fake *apitest.Server, stdout, stderr io.Writer) int {
	steps := []struct {
		name string
		fn   func() (string, error)
	}{
		{"login", func() (string, error) {
			res, err := engine.Login(ctx, demoUser, demoPassword)
			return res.Message, err
		}},
		{"profile", func() (string, error) {
			res, err := engine.FetchProfile(ctx)
			return res.Message, err
		}},
		{"expire access tokens", func() (string, error) {
			fake.ExpireAccessTokens()
			return "server now rejects the current access token", nil
		}},
		{"profile (refreshes)", func() (string, error) {
			res, err := engine.FetchProfile(ctx)
			return res.Message, err
		}},
		{"logout", func() (string, error) {
			return "Logged out.", engine.Logout(ctx)
		}},
	}

	for _, step := range steps {
		msg, err := step.fn()
		if err != nil {
			fmt.Fprintf(stdout, "%-22s failed\n", step.name)
			return fail(stderr, msg, err)
		}
		fmt.Fprintf(stdout, "%-22s %s [%s]\n", step.name, msg, engine.State())
	}
	return 0
}

func fail(stderr io.Writer, message string, err error) int {
	if message == "" {
		message = goAuthClient.UserMessage(err)
	}
	fmt.Fprintln(stderr, message)
	if errors.Is(err, goAuthClient.ErrStoreUnavailable) {
		fmt.Fprintf(stderr, "store: %v\n", err)
	}
	return 1
}

func printStatus(w io.Writer, st goAuthClient.Status) {
	fmt.Fprintf(w, "state:    %s\n", st.State)
	if st.Username != "" {
		fmt.Fprintf(w, "username: %s\n", st.Username)
	}
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "expires:  %s (in %s)\n", st.ExpiresAt.Format(time.RFC3339), time.Until(st.ExpiresAt).Round(time.Second))
	}
}

func printMetrics(w io.Writer, snap goAuthClient.MetricsSnapshot) {
	fmt.Fprintln(w, "---- metrics ----")
	for _, def := range internaldefs.CounterDefs {
		if v := snap.Counters[def.ID]; v > 0 {
			fmt.Fprintf(w, "%-40s %d\n", def.Name, v)
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		var n uint64
		for _, c := range snap.Histograms[def.ID] {
			n += c
		}
		if n > 0 {
			avg := snap.HistogramSums[def.ID] / time.Duration(n)
			fmt.Fprintf(w, "%-40s %d (avg %s)\n", def.Name+"_count", n, avg.Round(time.Microsecond))
		}
	}
}
