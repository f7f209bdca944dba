// Package main implements the preflight CLI, which verifies that a
// deployment's configuration can actually run the katabatic services:
// the store round-trips a value and the weather provider answers for both
// sites.
//
// Usage:
//
//	go run ./cmd/tools/preflight
//	go run ./cmd/tools/preflight --show-config
//	go run ./cmd/tools/preflight --skip-weather
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"katabatic/internal/app"
	"katabatic/internal/config"
	"katabatic/internal/types"
)

// preflightTimeout bounds the whole run, including DNS and TLS.
const preflightTimeout = 45 * time.Second

func main() {
	showConfig := flag.Bool("show-config", false, "Print the resolved configuration (secrets redacted)")
	skipWeather := flag.Bool("skip-weather", false, "Skip the weather provider check")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), preflightTimeout)
	defer cancel()

	os.Exit(run(ctx, os.Stdout, *showConfig, *skipWeather))
}

// run executes every check and returns the process exit code.
func run(ctx context.Context, w io.Writer, showConfig, skipWeather bool) int {
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		report(w, "config", ValidationResult{Valid: false, Message: err.Error()})
		return 1
	}
	report(w, "config", ValidationResult{Valid: true, Message: fmt.Sprintf("environment=%s store=%s", cfg.Environment, cfg.Store.Backend)})

	if showConfig {
		if err := printConfig(w, cfg); err != nil {
			fmt.Fprintf(w, "  could not print configuration: %v\n", err)
		}
	}

	a, err := app.New(ctx, cfg, app.NewLogger("error"))
	if err != nil {
		report(w, "components", ValidationResult{Valid: false, Message: err.Error()})
		return 1
	}
	defer a.Close()

	results := []namedResult{
		{"criteria", CheckCriteria(a.Analyzer.Criteria())},
		{"store", CheckStore(ctx, a.Store)},
	}
	if !skipWeather {
		target := a.Analyzer.TargetDate(time.Now())
		results = append(results, namedResult{"weather", CheckForecast(ctx, a.Forecasts, target)})
	}

	code := 0
	for _, r := range results {
		report(w, r.name, r.result)
		if !r.result.Valid {
			code = 1
		}
	}
	return code
}

type namedResult struct {
	name   string
	result ValidationResult
}

func report(w io.Writer, name string, r ValidationResult) {
	status := "PASS"
	if !r.Valid {
		status = "FAIL"
	}
	fmt.Fprintf(w, "[%s] %-10s %s\n", status, name, r.Message)
}

// printConfig writes cfg as indented JSON; SecretString fields marshal
// redacted.
func printConfig(w io.Writer, cfg *config.Config) error {
	data, err := json.MarshalIndent(struct {
		*config.Config
		Criteria types.Criteria `json:"criteria"`
	}{cfg, types.DefaultCriteria().Merge(cfg.Criteria.Overrides)}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
