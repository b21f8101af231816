// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/hamed0406/sitemonitor/internal/config"
	"github.com/hamed0406/sitemonitor/internal/domain"
)

func main() {
	envFile := flag.String("env", ".env", "path to a .env file (optional)")
	flag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*envFile)
	if err != nil {
		fail(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, "✖", e)
		}
		os.Exit(1)
	}

	targets, _ := cfg.Targets()
	websites, apis := 0, 0
	for _, t := range targets {
		if t.Kind == domain.APIEndpoint {
			apis++
		} else {
			websites++
		}
	}
	ok(fmt.Sprintf("%d websites, %d API endpoints", websites, apis))
	ok(fmt.Sprintf("interval=%s timeout=%s retries=%d cooldown=%s",
		cfg.Interval(), cfg.RequestTimeout(), cfg.MaxRetries, cfg.Cooldown()))

	if cfg.AlertEmail == "" && cfg.SlackWebhookURL == "" && cfg.KafkaBrokers == "" {
		warn("no notification sink configured; alerts will only be logged.")
	} else {
		if cfg.AlertEmail != "" {
			ok("email alerts to " + cfg.AlertEmail + " via " + cfg.SMTPServer)
		}
		if cfg.SlackWebhookURL != "" {
			ok("slack webhook present")
		}
		if cfg.KafkaBrokers != "" {
			ok("kafka topic " + cfg.KafkaTopic)
		}
	}

	switch {
	case cfg.StoreDriver != "":
		ok("STORE_DRIVER=" + cfg.StoreDriver)
	case cfg.DatabaseURL != "":
		ok("DATABASE_URL present; alert history in postgres")
	default:
		ok("alert history in " + cfg.StorePath)
	}

	if cfg.APIAddr == "" {
		warn("API_ADDR empty; status API disabled.")
	} else {
		ok("API_ADDR=" + cfg.APIAddr)
		if len(cfg.AdminKeys()) == 0 {
			warn("ADMIN_API_KEYS is empty; admin routes are open.")
		}
		if len(cfg.PublicKeys()) == 0 && len(cfg.AdminKeys()) == 0 {
			warn("PUBLIC_API_KEYS is empty; read routes are open.")
		}
		if cfg.AllowedOrigins == "" {
			warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
		}
	}

	ok("preflight passed")
}
