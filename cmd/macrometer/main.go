// MacroMeter - dish macro estimation from a photo and a weight.
// Entry point: subcommands analyze, lookup, serve and mcp.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/macrometer/internal/api"
	"github.com/matiasleandrokruk/macrometer/internal/app"
	"github.com/matiasleandrokruk/macrometer/internal/domain/nutrition"
	"github.com/matiasleandrokruk/macrometer/internal/infra/config"
	"github.com/matiasleandrokruk/macrometer/internal/infra/logging"
	"github.com/matiasleandrokruk/macrometer/internal/mcptools"
	"github.com/matiasleandrokruk/macrometer/internal/server"
	"github.com/matiasleandrokruk/macrometer/internal/version"
	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

const defaultOutput = "dish_macros.json"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// env carries the output streams shared by every subcommand.
type env struct {
	out  io.Writer
	errw io.Writer
}

func run(ctx context.Context, args []string, out, errw io.Writer) int {
	fs := flag.NewFlagSet("macrometer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errw, "macrometer: %v\n", err) //nolint:errcheck
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp || fs.NArg() == 0 {
		printHelp(out)
		return 0
	}

	e := env{out: out, errw: errw}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "analyze":
		return e.analyze(ctx, rest)
	case "lookup":
		return e.lookup(ctx, rest)
	case "serve":
		return e.serve(ctx, rest)
	case "mcp":
		return e.mcp(ctx, rest)
	case "version":
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	default:
		fmt.Fprintf(errw, "macrometer: unknown command %q\n", cmd) //nolint:errcheck
		printHelp(errw)
		return 2
	}
}

// loadConfig reads .env, the optional YAML file and the environment.
func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, err
	}
	return config.Load()
}

// setup loads configuration and the logger. Logs go to errw so stdout carries only results.
func (e env) setup() (config.Config, *zap.Logger, bool) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(e.errw, "macrometer: %v\n", err) //nolint:errcheck
		return config.Config{}, nil, false
	}
	logger, err := logging.New(e.errw, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(e.errw, "macrometer: %v\n", err) //nolint:errcheck
		return config.Config{}, nil, false
	}
	return cfg, logger, true
}

// fail prints err and maps it to an exit code: 2 for bad usage or input, 1 otherwise.
func (e env) fail(err error) int {
	fmt.Fprintf(e.errw, "macrometer: %v\n", err) //nolint:errcheck
	if errors.Is(err, apperr.ErrInvalidInput) || errors.Is(err, apperr.ErrConfiguration) {
		return 2
	}
	return 1
}

func (e env) analyze(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	output := fs.String("o", defaultOutput, "Path to save the JSON output, - for stdout")
	fs.StringVar(output, "output", defaultOutput, "Path to save the JSON output, - for stdout")

	pos, err := parseInterspersed(fs, args)
	if err != nil || len(pos) != 2 {
		fmt.Fprintln(e.errw, "usage: macrometer analyze <image> <weight_g> [-o file]") //nolint:errcheck
		return 2
	}
	weight, err := strconv.ParseFloat(pos[1], 64)
	if err != nil {
		return e.fail(apperr.Invalid("weight %q is not a number", pos[1]))
	}
	image, err := os.ReadFile(pos[0])
	if err != nil {
		return e.fail(apperr.Invalid("read image: %v", err))
	}

	cfg, logger, ok := e.setup()
	if !ok {
		return 2
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return e.fail(err)
	}
	defer a.Close() //nolint:errcheck

	analysis, err := a.Aggregator.Aggregate(ctx, image, weight)
	if err != nil {
		return e.fail(err)
	}
	for _, name := range analysis.Skipped {
		fmt.Fprintf(e.errw, "Warning: no nutrition data for %s\n", name) //nolint:errcheck
	}

	data, err := json.MarshalIndent(analysis.Result, "", "  ")
	if err != nil {
		return e.fail(err)
	}
	data = append(data, '\n')

	if *output == "-" {
		e.out.Write(data) //nolint:errcheck
		return 0
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil { //nolint:gosec
		return e.fail(err)
	}
	fmt.Fprintf(e.out, "JSON output saved to %s\n", *output) //nolint:errcheck
	return 0
}

func (e env) lookup(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	asJSON := fs.Bool("json", false, "Print the match as JSON")

	pos, err := parseInterspersed(fs, args)
	if err != nil || len(pos) == 0 {
		fmt.Fprintln(e.errw, "usage: macrometer lookup [--json] <food name>") //nolint:errcheck
		return 2
	}
	name := joinWords(pos)

	cfg, logger, ok := e.setup()
	if !ok {
		return 2
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.NewLookup(cfg, logger)
	if err != nil {
		return e.fail(err)
	}
	defer a.Close() //nolint:errcheck

	m, err := a.Foods.Lookup(ctx, name)
	if err != nil {
		return e.fail(err)
	}
	if *asJSON {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		enc.Encode(m) //nolint:errcheck
		return 0
	}
	printProfile(e.out, m)
	return 0
}

func (e env) serve(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	port := fs.Int("port", 0, "Listen port (overrides HTTP_PORT)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(e.errw, "usage: macrometer serve [--port N]") //nolint:errcheck
		return 2
	}

	cfg, logger, ok := e.setup()
	if !ok {
		return 2
	}
	defer logger.Sync() //nolint:errcheck
	if *port > 0 {
		cfg.HTTPPort = *port
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return e.fail(err)
	}

	checkCtx, cancelCheck := context.WithTimeout(ctx, 10*time.Second)
	if err := a.HealthCheck(checkCtx); err != nil {
		logger.Warn("vision provider is not healthy; analyze requests will fail until it recovers", zap.Error(err))
	}
	cancelCheck()

	srvCfg := server.DefaultConfig()
	srvCfg.Host, srvCfg.Port = cfg.HTTPHost, cfg.HTTPPort
	router := api.NewRouter(api.Deps{
		Analyzer:    a.Aggregator,
		Foods:       a.Foods,
		Health:      a,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.Named("http"),
	})
	srv := server.NewServer(router, srvCfg, logger, a.Closers()...)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	select {
	case err := <-errc:
		a.Close() //nolint:errcheck
		if err != nil {
			return e.fail(err)
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return e.fail(err)
	}
	return 0
}

func (e env) mcp(ctx context.Context, _ []string) int {
	cfg, logger, ok := e.setup()
	if !ok {
		return 2
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return e.fail(err)
	}
	defer a.Close() //nolint:errcheck

	if err := mcptools.Serve(ctx, mcptools.NewTools(a.Aggregator, a.Foods, logger.Named("mcp"))); err != nil && !errors.Is(err, context.Canceled) {
		return e.fail(err)
	}
	return 0
}

// parseInterspersed parses flags that may appear before, between or after positional args.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return pos, nil
		}
		pos = append(pos, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func joinWords(words []string) string {
	out := words[0]
	for _, w := range words[1:] {
		out += " " + w
	}
	return out
}

// printProfile writes the per-100g profile in the plain-text form of the lookup command.
func printProfile(out io.Writer, m *nutrition.FoodMatch) {
	fmt.Fprintf(out, "%s per 100g:\n", m.Description)                     //nolint:errcheck
	fmt.Fprintf(out, "Calories: %s kcal\n", fmtValue(m.Profile.Calories)) //nolint:errcheck
	fmt.Fprintf(out, "Protein: %s g\n", fmtValue(m.Profile.ProteinG))     //nolint:errcheck
	fmt.Fprintf(out, "Carbs: %s g\n", fmtValue(m.Profile.CarbsG))         //nolint:errcheck
	fmt.Fprintf(out, "Fat: %s g\n", fmtValue(m.Profile.FatG))             //nolint:errcheck
}

func fmtValue(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func printHelp(out io.Writer) {
	helpText := `MacroMeter - dish macros from a photo and a weight

Usage:
  macrometer [options] <command> [arguments]

Options:
  --version    Show version information
  --help       Show this help message

Commands:
  analyze <image> <weight_g> [-o file]   Estimate dish macros, write JSON (default: dish_macros.json)
  lookup [--json] <food name>            Print per-100g nutrition for one food
  serve [--port N]                       Start the HTTP API
  mcp                                    Serve MCP tools over stdio
  version                                Show version information

Configuration is read from .env, MACROMETER_CONFIG (YAML) and the environment.

Examples:
  macrometer analyze plate.jpg 450
  macrometer lookup white rice
  macrometer serve --port 8080`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
