package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/warebill/billing/internal/billing"
	"github.com/warebill/billing/internal/catalog"
	"github.com/warebill/billing/internal/config"
	"github.com/warebill/billing/internal/obs"
	"github.com/warebill/billing/internal/repo"
)

// reportgen runs a billing report synchronously and prints it to stdout.
// Useful for spot checks without going through the worker queue.
func main() {
	var (
		customerFlag = flag.String("customer", "", "customer UUID")
		fromFlag     = flag.String("from", "", "window start (YYYY-MM-DD)")
		toFlag       = flag.String("to", "", "window end (YYYY-MM-DD, exclusive)")
		formatFlag   = flag.String("format", "json", "output format: json or csv")
	)
	flag.Parse()

	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "reportgen").Logger()

	customerID, err := uuid.Parse(*customerFlag)
	if err != nil {
		fatalf("invalid -customer: %v", err)
	}
	from, err := time.Parse("2006-01-02", *fromFlag)
	if err != nil {
		fatalf("invalid -from: %v", err)
	}
	to, err := time.Parse("2006-01-02", *toFlag)
	if err != nil {
		fatalf("invalid -to: %v", err)
	}
	if *formatFlag != "json" && *formatFlag != "csv" {
		fatalf("invalid -format %q", *formatFlag)
	}

	ctx := context.Background()
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fatalf("connect database: %v", err)
	}
	defer pool.Close()

	var packaging catalog.Source = &repo.ProductStore{Pool: pool}
	if cfg.RedisURL != "" {
		if redisOpts, err := redis.ParseURL(cfg.RedisURL); err == nil {
			client := redis.NewClient(redisOpts)
			defer client.Close()
			packaging = &catalog.CachedSource{
				Inner: &repo.ProductStore{Pool: pool},
				R:     client,
				TTL:   cfg.PackagingCacheTTL,
			}
		}
	}

	generator := &billing.Generator{
		Customers: &repo.CustomerStore{Pool: pool},
		Orders:    &repo.OrderStore{Pool: pool},
		Bindings:  &repo.BindingStore{Pool: pool, Log: &logger},
		Calc:      &billing.Calculator{Packaging: packaging, Log: &logger},
		Log:       &logger,
		MaxRange:  cfg.ReportMaxRange,
	}

	report, err := generator.Generate(ctx, billing.Request{CustomerID: customerID, From: from, To: to})
	if err != nil {
		fatalf("generate report: %v", err)
	}

	switch *formatFlag {
	case "csv":
		fmt.Print(report.ToCSV())
	default:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			fatalf("encode report: %v", err)
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
