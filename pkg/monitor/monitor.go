// Package monitor ties fetch, extract and store together for one check run
// and decides whether a notification goes out.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hprakash/firstcry-monitor/pkg/config"
	"github.com/hprakash/firstcry-monitor/pkg/extract"
	"github.com/hprakash/firstcry-monitor/pkg/fetch"
	"github.com/hprakash/firstcry-monitor/pkg/store"
)

// Notifier delivers a single plain-text notification.
type Notifier interface {
	Send(subject, body string) error
}

// RunStore is the per-run transactional view of the product store.
// *store.Run satisfies it.
type RunStore interface {
	Contains(ctx context.Context, id string) (bool, error)
	UpsertNew(ctx context.Context, id, title string, seenAt time.Time) error
	Touch(ctx context.Context, id string, seenAt time.Time) error
	Count(ctx context.Context) (int, error)
}

// Result summarizes the change detection of one run.
type Result struct {
	// New holds records whose id was absent from the store, in extraction order.
	New []extract.Product
	// PreviousCount is the store's row count before this run wrote anything.
	PreviousCount int
	// CurrentCount is the number of records extracted this run.
	CurrentCount int
}

// Process classifies each record as new or already known, persisting both
// kinds. The previous count is read before any write so it reflects the
// state the run started from.
func Process(ctx context.Context, rs RunStore, records []extract.Product, now time.Time) (Result, error) {
	prev, err := rs.Count(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{PreviousCount: prev, CurrentCount: len(records)}
	for _, p := range records {
		known, err := rs.Contains(ctx, p.ID)
		if err != nil {
			return Result{}, err
		}
		if known {
			if err := rs.Touch(ctx, p.ID, now); err != nil {
				return Result{}, err
			}
			continue
		}
		if err := rs.UpsertNew(ctx, p.ID, p.Title, now); err != nil {
			return Result{}, err
		}
		res.New = append(res.New, p)
	}
	return res, nil
}

// Monitor runs one complete check cycle.
type Monitor struct {
	cfg       config.Config
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	store     *store.Store
	notifier  Notifier
}

// New wires a Monitor from its collaborators. The fetcher is built from the
// config; extraction uses the default FirstCry markers.
func New(cfg config.Config, st *store.Store, n Notifier) *Monitor {
	f := fetch.New(fetch.Options{
		SearchURL: cfg.SearchURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
		Retries:   cfg.FetchRetries,
		Backoff:   cfg.FetchBackoff,
	})
	return &Monitor{
		cfg:       cfg,
		fetcher:   f,
		extractor: extract.New(),
		store:     st,
		notifier:  n,
	}
}

// Run performs one fetch-extract-diff cycle and sends a notification when
// new records appeared or the listing count increased. All store writes of
// the run commit together at the end.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info("starting run", "query", m.cfg.SearchQuery)

	if err := m.store.EnsureSchema(ctx); err != nil {
		return err
	}

	html, err := m.fetcher.Fetch(m.cfg.SearchQuery)
	if err != nil {
		return err
	}

	records, err := m.extractor.Extract(html)
	if err != nil {
		return err
	}

	if m.cfg.ShowSample {
		logSample(records)
	}

	run, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer run.Rollback()

	res, err := Process(ctx, run, records, time.Now())
	if err != nil {
		return err
	}
	if err := run.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}

	log.Info("parsed products", "current", res.CurrentCount, "previously_stored", res.PreviousCount, "new", len(res.New))

	return m.notify(res)
}

// notify applies the decision policy: itemized mail for new records, generic
// mail when only the count grew, silence otherwise.
func (m *Monitor) notify(res Result) error {
	switch {
	case len(res.New) > 0:
		var b strings.Builder
		fmt.Fprintf(&b, "New items found for '%s' on FirstCry (%d):\n", m.cfg.SearchQuery, len(res.New))
		for _, p := range res.New {
			fmt.Fprintf(&b, "• %s — id: %s\n", p.Title, p.ID)
		}
		subject := fmt.Sprintf("[FirstCry] New items for %s", m.cfg.SearchQuery)
		return m.notifier.Send(subject, b.String())

	case res.CurrentCount > res.PreviousCount:
		// Heuristic catch-all: the extraction tier or dedup behavior changed
		// in a way per-id novelty didn't see.
		subject := fmt.Sprintf("[FirstCry] Count increased for %s", m.cfg.SearchQuery)
		body := fmt.Sprintf("Count: %d → %d", res.PreviousCount, res.CurrentCount)
		return m.notifier.Send(subject, body)

	default:
		log.Info("no new items found this run")
		return nil
	}
}

func logSample(records []extract.Product) {
	n := len(records)
	if n > 10 {
		n = 10
	}
	log.Info("sample of parsed products", "count", len(records))
	for i, p := range records[:n] {
		log.Info("sample", "n", i+1, "title", p.Title, "id", p.ID)
	}
}
