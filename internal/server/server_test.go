package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/lightcmd/internal/command"
	"github.com/dokzlo13/lightcmd/internal/db"
	"github.com/dokzlo13/lightcmd/internal/dispatch/dispatchtest"
	"github.com/dokzlo13/lightcmd/internal/eventbus"
	"github.com/dokzlo13/lightcmd/internal/hue"
	"github.com/dokzlo13/lightcmd/internal/interpreter"
	"github.com/dokzlo13/lightcmd/internal/ledger"
)

const testKey = "s3cret"

type readyFlag bool

func (r readyFlag) Ready() bool { return bool(r) }

func newTestServer(provider *dispatchtest.Provider) http.Handler {
	in := interpreter.New(command.DefaultLexicon(), provider, nil)
	return New(Options{Key: testKey}, in, readyFlag(false), nil).Handler()
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func commandURL(key, cmd string) string {
	q := url.Values{}
	if key != "" {
		q.Set("key", key)
	}
	if cmd != "" {
		q.Set("command", cmd)
	}
	return "/?" + q.Encode()
}

func TestCommand_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		status  int
		hubUsed bool
	}{
		{"success", commandURL(testKey, "bedroom on"), http.StatusOK, true},
		{"any path", "/lights/trigger?" + strings.TrimPrefix(commandURL(testKey, "off"), "/?"), http.StatusOK, true},
		{"missing key", commandURL("", "bedroom on"), http.StatusBadRequest, false},
		{"wrong key", commandURL("nope", "bedroom on"), http.StatusBadRequest, false},
		{"missing command", commandURL(testKey, ""), http.StatusBadRequest, false},
		{"unknown word", commandURL(testKey, "purple on"), http.StatusBadRequest, false},
		{"zone only", commandURL(testKey, "bedroom"), http.StatusBadRequest, false},
		{"empty command", "/?key=" + testKey + "&command=", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &dispatchtest.Provider{Target: dispatchtest.NewRecorder()}
			rec := get(newTestServer(provider), tt.target)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.hubUsed, provider.Requests() > 0)
			if tt.status == http.StatusOK {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestCommand_MissingKeyNeverTouchesHub(t *testing.T) {
	hub := dispatchtest.NewRecorder()
	provider := &dispatchtest.Provider{Target: hub}

	rec := get(newTestServer(provider), "/?command=bedroom+on")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, provider.Requests())
	assert.Empty(t, hub.Calls())
}

func TestCommand_TrimsAndDispatches(t *testing.T) {
	hub := dispatchtest.NewRecorder()
	rec := get(newTestServer(&dispatchtest.Provider{Target: hub}), commandURL(testKey, "  bedroom cold 75  "))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{
		"color Bedroom-1 f5faf6",
		"dimmer Bedroom 191",
		"power Bedroom true",
	}, hub.Calls())
}

func TestCommand_ClientGoneStillDispatchesEveryZone(t *testing.T) {
	hub := dispatchtest.NewRecorder()
	h := newTestServer(&dispatchtest.Provider{Target: hub})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, commandURL(testKey, "50"), nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{
		"dimmer Bathroom 127", "power Bathroom true",
		"dimmer Bedroom 127", "power Bedroom true",
		"dimmer Living Room 127", "power Living Room true",
		"dimmer Office 127", "power Office true",
	}, hub.Calls())
}

func TestCommand_FormBody(t *testing.T) {
	hub := dispatchtest.NewRecorder()
	h := newTestServer(&dispatchtest.Provider{Target: hub})

	form := url.Values{"key": {testKey}, "command": {"office 50"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"dimmer Office 127", "power Office true"}, hub.Calls())
}

func TestCommand_FormBodyReplacesQuery(t *testing.T) {
	provider := &dispatchtest.Provider{Target: dispatchtest.NewRecorder()}
	h := newTestServer(provider)

	// The key in the query string is ignored once a form body is present.
	req := httptest.NewRequest(http.MethodPost, commandURL(testKey, "off"), strings.NewReader("command=off"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, provider.Requests())
}

func TestCommand_ServerErrors(t *testing.T) {
	t.Run("configuration", func(t *testing.T) {
		provider := &dispatchtest.Provider{Err: hue.ErrConfiguration}
		rec := get(newTestServer(provider), commandURL(testKey, "on"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("connect", func(t *testing.T) {
		provider := &dispatchtest.Provider{Err: errors.Join(hue.ErrConnect, errors.New("timeout"))}
		rec := get(newTestServer(provider), commandURL(testKey, "on"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("hub operation", func(t *testing.T) {
		hub := dispatchtest.NewRecorder()
		hub.Fail["Office"] = true
		rec := get(newTestServer(&dispatchtest.Provider{Target: hub}), commandURL(testKey, "on"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		// Best effort: the remaining zones were still switched.
		assert.Len(t, hub.Calls(), 4)
	})
}

func TestCommand_SuggestionInBody(t *testing.T) {
	rec := get(newTestServer(&dispatchtest.Provider{}), commandURL(testKey, "bedroom wram"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `did you mean "warm"?`)
}

func TestRequestID(t *testing.T) {
	h := newTestServer(&dispatchtest.Provider{Target: dispatchtest.NewRecorder()})

	rec := get(h, "/health")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestHealthAndReady(t *testing.T) {
	in := interpreter.New(command.DefaultLexicon(), &dispatchtest.Provider{}, nil)

	rec := get(New(Options{Key: testKey}, in, nil, nil).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = get(New(Options{Key: testKey}, in, readyFlag(false), nil).Handler(), "/ready")
	assert.JSONEq(t, `{"status":"ready","hub":"pending"}`, rec.Body.String())

	rec = get(New(Options{Key: testKey}, in, readyFlag(true), nil).Handler(), "/ready")
	assert.JSONEq(t, `{"status":"ready","hub":"connected"}`, rec.Body.String())
}

func TestHistory(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	l := ledger.New(database.DB)

	for i, cmd := range []string{"bedroom on", "office off", "warm"} {
		require.NoError(t, l.Append(eventbus.Event{
			Type:    eventbus.EventTypeCommandCompleted,
			Command: cmd,
			Time:    time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	in := interpreter.New(command.DefaultLexicon(), &dispatchtest.Provider{}, nil)
	h := New(Options{Key: testKey}, in, nil, l).Handler()

	rec := get(h, "/history?key="+testKey+"&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "warm", entries[0].Command)
	assert.Equal(t, "office off", entries[1].Command)

	assert.Equal(t, http.StatusBadRequest, get(h, "/history").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/history?key="+testKey+"&limit=x").Code)

	disabled := New(Options{Key: testKey}, in, nil, nil).Handler()
	assert.Equal(t, http.StatusNotFound, get(disabled, "/history?key="+testKey).Code)
}

func TestHistory_ByType(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	l := ledger.New(database.DB)

	events := []eventbus.Event{
		{Type: eventbus.EventTypeCommandCompleted, Command: "bedroom on"},
		{Type: eventbus.EventTypeCommandRejected, Command: "purple on"},
		{Type: eventbus.EventTypeCommandCompleted, Command: "office off"},
		{Type: eventbus.EventTypeCommandRejected, Command: "bedroom"},
	}
	for i, e := range events {
		e.Time = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, l.Append(e))
	}

	in := interpreter.New(command.DefaultLexicon(), &dispatchtest.Provider{}, nil)
	h := New(Options{Key: testKey}, in, nil, l).Handler()

	rec := get(h, "/history?key="+testKey+"&type=command_rejected")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "bedroom", entries[0].Command)
	assert.Equal(t, "purple on", entries[1].Command)
	for _, e := range entries {
		assert.Equal(t, eventbus.EventTypeCommandRejected, e.EventType)
	}

	rec = get(h, "/history?key="+testKey+"&type=command_completed&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "office off", entries[0].Command)

	assert.Equal(t, http.StatusBadRequest, get(h, "/history?key="+testKey+"&type=bogus").Code)
}
