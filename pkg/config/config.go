// Package config collects runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every knob the monitor reads. Values come from the environment
// (optionally via a .env file loaded by the caller); all fields have defaults
// so an empty environment still produces a usable monitor.
type Config struct {
	// SearchQuery is either a plain query string or a full http(s) URL.
	SearchQuery string
	// SearchURL is the search endpoint prefix the query gets appended to.
	SearchURL string
	// DBPath is the SQLite file recording every product ever seen.
	DBPath string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	// EmailTo defaults to SMTPUser when unset.
	EmailTo string

	// ShowSample prints the first few parsed products for inspection.
	ShowSample bool
	// UserAgent identifies the monitor to the target site.
	UserAgent string

	FetchTimeout time.Duration
	FetchRetries int
	FetchBackoff time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	user := getenv("SMTP_USER", "")
	return Config{
		SearchQuery: getenv("SEARCH_QUERY", "hot wheels"),
		SearchURL:   getenv("FIRSTCRY_SEARCH_URL", "https://www.firstcry.com/search?query="),
		DBPath:      getenv("DB_PATH", "firstcry_monitor.db"),

		SMTPHost: getenv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort: atoienv("SMTP_PORT", 587),
		SMTPUser: user,
		SMTPPass: getenv("SMTP_PASS", ""),
		EmailTo:  getenv("EMAIL_TO", user),

		ShowSample: getenv("SHOW_SAMPLE", "0") == "1",
		UserAgent:  getenv("USER_AGENT", "FirstCryMonitor/1.0 (contact: ops@example.com)"),

		FetchTimeout: time.Duration(atoienv("FETCH_TIMEOUT_SECONDS", 20)) * time.Second,
		FetchRetries: atoienv("FETCH_RETRIES", 2),
		FetchBackoff: time.Duration(atoienv("FETCH_BACKOFF_SECONDS", 2)) * time.Second,
	}
}
