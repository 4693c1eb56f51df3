package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tableside/dinein/models"
)

// pollSource serves a session:updated payload that tests can swap out.
type pollSource struct {
	mu   sync.Mutex
	body []byte
	hits int
}

func (ps *pollSource) set(ev SessionUpdated) {
	data, _ := json.Marshal(ev)
	ps.mu.Lock()
	ps.body = data
	ps.mu.Unlock()
}

func (ps *pollSource) handler(w http.ResponseWriter, _ *http.Request) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.hits++
	w.Header().Set("Content-Type", "application/json")
	w.Write(ps.body)
}

func collectEvents() (Callback, func() []Event) {
	var mu sync.Mutex
	var events []Event
	cb := func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}
	return cb, func() []Event {
		mu.Lock()
		defer mu.Unlock()
		out := make([]Event, len(events))
		copy(out, events)
		return out
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPollingDeliversOnChange(t *testing.T) {
	src := &pollSource{}
	src.set(SessionUpdated{Session: models.TableSession{ID: 1, TotalAmount: 35000}, OrderCount: 1})
	srv := httptest.NewServer(http.HandlerFunc(src.handler))
	defer srv.Close()

	tr, err := New(Config{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer tr.Close()

	cb, got := collectEvents()
	unsub, err := tr.Subscribe("session-token-1", EventSessionUpdated, Options{PollURL: srv.URL}, cb)
	require.NoError(t, err)
	defer unsub()

	waitFor(t, func() bool { return len(got()) >= 1 })

	ev, ok := got()[0].(*SessionUpdated)
	require.True(t, ok)
	assert.Equal(t, uint(1), ev.Session.ID)
	assert.Equal(t, 1, ev.OrderCount)
}

func TestPollingSuppressesUnchangedPayloads(t *testing.T) {
	src := &pollSource{}
	src.set(SessionUpdated{Session: models.TableSession{ID: 1}, OrderCount: 1})
	srv := httptest.NewServer(http.HandlerFunc(src.handler))
	defer srv.Close()

	tr, err := New(Config{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer tr.Close()

	cb, got := collectEvents()
	unsub, err := tr.Subscribe("session-token-1", EventSessionUpdated, Options{PollURL: srv.URL}, cb)
	require.NoError(t, err)
	defer unsub()

	// Let several identical polls go by.
	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.hits >= 5
	})
	assert.Len(t, got(), 1)

	// A changed payload fires exactly one more delivery.
	src.set(SessionUpdated{Session: models.TableSession{ID: 1, TotalAmount: 43000}, OrderCount: 2})
	waitFor(t, func() bool { return len(got()) >= 2 })

	ev := got()[1].(*SessionUpdated)
	assert.Equal(t, 2, ev.OrderCount)
}

func TestPollingRequiresURL(t *testing.T) {
	tr, err := New(Config{})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Subscribe("session-x", EventSessionUpdated, Options{}, func(Event) {})
	assert.Error(t, err)
}

func TestPollingSharedPollerRefCounting(t *testing.T) {
	src := &pollSource{}
	src.set(SessionUpdated{Session: models.TableSession{ID: 1}})
	srv := httptest.NewServer(http.HandlerFunc(src.handler))
	defer srv.Close()

	tr, err := New(Config{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer tr.Close()

	cbA, gotA := collectEvents()
	cbB, gotB := collectEvents()

	unsubA, err := tr.Subscribe("session-x", EventSessionUpdated, Options{PollURL: srv.URL}, cbA)
	require.NoError(t, err)
	unsubB, err := tr.Subscribe("session-x", EventSessionUpdated, Options{PollURL: srv.URL}, cbB)
	require.NoError(t, err)

	waitFor(t, func() bool { return len(gotA()) >= 1 && len(gotB()) >= 1 })

	// Dropping one subscriber keeps the poller alive for the other.
	unsubA()
	src.set(SessionUpdated{Session: models.TableSession{ID: 1}, OrderCount: 3})
	waitFor(t, func() bool { return len(gotB()) >= 2 })
	assert.Len(t, gotA(), 1)

	// Unsubscribing twice is harmless; the last drop stops polling.
	unsubA()
	unsubB()
	src.mu.Lock()
	settled := src.hits
	src.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	src.mu.Lock()
	after := src.hits
	src.mu.Unlock()
	assert.LessOrEqual(t, after, settled+1)
}

func TestPollingUnsubscribeInsideCallback(t *testing.T) {
	var mu sync.Mutex
	serving := false
	src := &pollSource{}
	src.set(SessionUpdated{Session: models.TableSession{ID: 1}, OrderCount: 1})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ok := serving
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		src.handler(w, r)
	}))
	defer srv.Close()

	tr, err := New(Config{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer tr.Close()

	// A bill page that redirects away on payment tears its own
	// subscription down from inside the callback.
	var unsub Unsubscribe
	deliveries := 0
	unsub, err = tr.Subscribe("session-z", EventSessionUpdated, Options{PollURL: srv.URL}, func(Event) {
		mu.Lock()
		deliveries++
		mu.Unlock()
		unsub()
	})
	require.NoError(t, err)

	// Only start serving once the unsubscribe handle exists.
	mu.Lock()
	serving = true
	mu.Unlock()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deliveries >= 1
	})

	// The subscription is gone: a changed payload delivers nothing more.
	src.set(SessionUpdated{Session: models.TableSession{ID: 1}, OrderCount: 2})
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, deliveries)
	mu.Unlock()

	// And the transport is not wedged: a fresh subscription still works.
	cb, got := collectEvents()
	unsub2, err := tr.Subscribe("session-z", EventSessionUpdated, Options{PollURL: srv.URL}, cb)
	require.NoError(t, err)
	defer unsub2()
	waitFor(t, func() bool { return len(got()) >= 1 })
}

func TestPollingSurvivesServerErrors(t *testing.T) {
	var mu sync.Mutex
	failing := true
	src := &pollSource{}
	src.set(SessionUpdated{Session: models.TableSession{ID: 7}})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := failing
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		src.handler(w, r)
	}))
	defer srv.Close()

	tr, err := New(Config{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer tr.Close()

	cb, got := collectEvents()
	unsub, err := tr.Subscribe("session-y", EventSessionUpdated, Options{PollURL: srv.URL}, cb)
	require.NoError(t, err)
	defer unsub()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, got())

	mu.Lock()
	failing = false
	mu.Unlock()

	waitFor(t, func() bool { return len(got()) >= 1 })
}
