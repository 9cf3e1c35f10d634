package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hprakash/firstcry-monitor/pkg/config"
	"github.com/hprakash/firstcry-monitor/pkg/extract"
	"github.com/hprakash/firstcry-monitor/pkg/store"
)

// fakeRun is an in-memory RunStore recording every write.
type fakeRun struct {
	known   map[string]bool
	count   int
	upserts []string
	touches []string
	titles  map[string]string
	seenAt  map[string]time.Time
}

func newFakeRun(count int, known ...string) *fakeRun {
	f := &fakeRun{
		known:  map[string]bool{},
		count:  count,
		titles: map[string]string{},
		seenAt: map[string]time.Time{},
	}
	for _, id := range known {
		f.known[id] = true
	}
	return f
}

func (f *fakeRun) Contains(_ context.Context, id string) (bool, error) {
	return f.known[id], nil
}

func (f *fakeRun) UpsertNew(_ context.Context, id, title string, seenAt time.Time) error {
	f.known[id] = true
	f.upserts = append(f.upserts, id)
	f.titles[id] = title
	f.seenAt[id] = seenAt
	return nil
}

func (f *fakeRun) Touch(_ context.Context, id string, seenAt time.Time) error {
	f.touches = append(f.touches, id)
	f.seenAt[id] = seenAt
	return nil
}

func (f *fakeRun) Count(context.Context) (int, error) {
	return f.count, nil
}

// recorder captures notifications instead of sending mail.
type recorder struct {
	subjects []string
	bodies   []string
}

func (r *recorder) Send(subject, body string) error {
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return nil
}

func TestProcessClassifiesNewAndKnown(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rs := newFakeRun(2, "A", "B")
	records := []extract.Product{
		{ID: "A", Title: "Alpha"},
		{ID: "B", Title: "Beta"},
		{ID: "C", Title: "Gamma"},
	}

	res, err := Process(context.Background(), rs, records, now)
	require.NoError(t, err)

	assert.Equal(t, []extract.Product{{ID: "C", Title: "Gamma"}}, res.New)
	assert.Equal(t, 2, res.PreviousCount)
	assert.Equal(t, 3, res.CurrentCount)

	assert.Equal(t, []string{"C"}, rs.upserts)
	assert.Equal(t, []string{"A", "B"}, rs.touches)
	assert.Equal(t, "Gamma", rs.titles["C"])
	assert.Equal(t, now, rs.seenAt["C"])
	assert.Equal(t, now, rs.seenAt["A"])
	assert.Equal(t, now, rs.seenAt["B"])
}

func TestProcessReadsPreviousCountBeforeWrites(t *testing.T) {
	rs := newFakeRun(0)
	records := []extract.Product{{ID: "A"}, {ID: "B"}}

	res, err := Process(context.Background(), rs, records, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0, res.PreviousCount)
	assert.Equal(t, 2, res.CurrentCount)
	assert.Len(t, res.New, 2)
}

func TestProcessAgainstRealStore(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	now := time.Unix(1700000000, 0)

	run, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, run.UpsertNew(ctx, "A", "Alpha", now.Add(-time.Hour)))
	require.NoError(t, run.UpsertNew(ctx, "B", "Beta", now.Add(-time.Hour)))
	require.NoError(t, run.Commit())

	run, err = st.Begin(ctx)
	require.NoError(t, err)
	res, err := Process(ctx, run, []extract.Product{{ID: "A"}, {ID: "B"}, {ID: "C", Title: "Gamma"}}, now)
	require.NoError(t, err)
	require.NoError(t, run.Commit())

	assert.Equal(t, 2, res.PreviousCount)
	assert.Equal(t, 3, res.CurrentCount)
	require.Len(t, res.New, 1)
	assert.Equal(t, "C", res.New[0].ID)

	run, err = st.Begin(ctx)
	require.NoError(t, err)
	defer run.Rollback()
	known, err := run.Contains(ctx, "C")
	require.NoError(t, err)
	assert.True(t, known)
	n, err := run.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNotifyNewItems(t *testing.T) {
	rec := &recorder{}
	m := &Monitor{cfg: config.Config{SearchQuery: "hot wheels"}, notifier: rec}

	res := Result{
		New:           []extract.Product{{ID: "99", Title: "Monster Truck"}},
		PreviousCount: 2,
		CurrentCount:  3,
	}
	require.NoError(t, m.notify(res))

	require.Len(t, rec.subjects, 1)
	assert.Equal(t, "[FirstCry] New items for hot wheels", rec.subjects[0])
	assert.Contains(t, rec.bodies[0], "Monster Truck")
	assert.Contains(t, rec.bodies[0], "99")
}

func TestNotifyCountIncreaseOnly(t *testing.T) {
	// All three records already known, but the store only reported two rows
	// before the run: the generic count-change path fires.
	rs := newFakeRun(2, "X", "Y", "Z")
	records := []extract.Product{{ID: "X"}, {ID: "Y"}, {ID: "Z"}}

	res, err := Process(context.Background(), rs, records, time.Now())
	require.NoError(t, err)
	assert.Empty(t, res.New)
	assert.Equal(t, 2, res.PreviousCount)
	assert.Equal(t, 3, res.CurrentCount)

	rec := &recorder{}
	m := &Monitor{cfg: config.Config{SearchQuery: "hot wheels"}, notifier: rec}
	require.NoError(t, m.notify(res))

	require.Len(t, rec.subjects, 1)
	assert.Equal(t, "[FirstCry] Count increased for hot wheels", rec.subjects[0])
	assert.Contains(t, rec.bodies[0], "2")
	assert.Contains(t, rec.bodies[0], "3")
}

func TestNotifyNothingWhenUnchanged(t *testing.T) {
	rec := &recorder{}
	m := &Monitor{cfg: config.Config{SearchQuery: "hot wheels"}, notifier: rec}

	require.NoError(t, m.notify(Result{PreviousCount: 3, CurrentCount: 3}))
	assert.Empty(t, rec.subjects)
}

func TestRunEndToEnd(t *testing.T) {
	page := fmt.Sprintf(`<html><body>
		<a href="/hotwheels/monster-truck/9001">Monster Truck</a>
		<a href="/hotwheels/track-set/9002">Track Set</a>
		<!-- %s -->
	</body></html>`, "padding padding padding padding padding padding")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer ts.Close()

	st := openTestStore(t)
	rec := &recorder{}
	cfg := config.Config{
		SearchQuery:  ts.URL, // absolute URL passes through BuildURL verbatim
		FetchTimeout: 5 * time.Second,
		FetchRetries: 1,
		FetchBackoff: time.Millisecond,
	}
	m := New(cfg, st, rec)

	// first run: both products are new
	require.NoError(t, m.Run(context.Background()))
	require.Len(t, rec.subjects, 1)
	assert.Contains(t, rec.subjects[0], "New items")
	assert.Contains(t, rec.bodies[0], "Monster Truck")
	assert.Contains(t, rec.bodies[0], "9002")

	// second run over the same page: nothing new, counts equal, no mail
	require.NoError(t, m.Run(context.Background()))
	assert.Len(t, rec.subjects, 1)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}
