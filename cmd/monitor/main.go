package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/hprakash/firstcry-monitor/pkg/config"
	"github.com/hprakash/firstcry-monitor/pkg/mail"
	"github.com/hprakash/firstcry-monitor/pkg/monitor"
	"github.com/hprakash/firstcry-monitor/pkg/store"
)

// main performs a single check run. It always exits 0: the monitor is driven
// by an external scheduler and a failed run reports itself by email instead
// of by exit status.
func main() {
	dbArg := flag.String("db", "", "path to the SQLite store (overrides DB_PATH)")
	queryArg := flag.String("query", "", "search query or full URL (overrides SEARCH_QUERY)")
	flag.Parse()

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := config.Load()
	if *dbArg != "" {
		cfg.DBPath = *dbArg
	}
	if *queryArg != "" {
		cfg.SearchQuery = *queryArg
	}

	log.Info("FirstCry monitor", "query", cfg.SearchQuery, "db", cfg.DBPath)

	sender := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailTo)

	reportFailure := func(err error) {
		log.Error("run failed", "err", err)
		subject := fmt.Sprintf("[FirstCry Monitor] Error for %s", cfg.SearchQuery)
		if mailErr := sender.Send(subject, err.Error()); mailErr != nil {
			// best effort only
			log.Error("error notification failed", "err", mailErr)
		}
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		reportFailure(err)
		return
	}
	defer st.Close()

	m := monitor.New(cfg, st, sender)
	if err := m.Run(context.Background()); err != nil {
		reportFailure(err)
		return
	}

	log.Info("run complete")
}
