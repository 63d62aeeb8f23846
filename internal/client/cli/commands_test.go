package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI mimics the journal server closely enough for the CLI.
type fakeAPI struct {
	mu        sync.Mutex
	pin       string
	failures  int
	unlocks   int
	lastAuth  string
	lastBody  map[string]any
	expiresAt time.Time
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	readBody := func(r *http.Request) map[string]any {
		var m map[string]any
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &m)
		return m
	}

	mux.HandleFunc("/journal/security/setup", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastBody = readBody(r)
		f.pin = f.lastBody["pin"].(string)
		write(w, http.StatusOK, map[string]bool{"success": true})
	})
	mux.HandleFunc("/journal/unlock", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unlocks++
		body := readBody(r)
		switch {
		case f.pin == "":
			write(w, http.StatusNotFound, map[string]string{"error": "journal security not configured"})
		case f.failures >= 3:
			w.Header().Set("Retry-After", "900")
			write(w, http.StatusLocked, map[string]string{"error": "journal locked"})
		case body["pin"] != f.pin:
			f.failures++
			if f.failures >= 3 {
				w.Header().Set("Retry-After", "900")
				write(w, http.StatusLocked, map[string]string{"error": "journal locked"})
				return
			}
			write(w, http.StatusUnauthorized, map[string]any{"error": "invalid credential", "attempts_remaining": 3 - f.failures})
		default:
			write(w, http.StatusOK, map[string]any{"access_token": "tok-" + r.Header.Get("X-User-ID"), "expires_at": f.expiresAt})
		}
	})
	mux.HandleFunc("/journal/entries", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		if f.lastAuth != "Bearer tok-u1" {
			write(w, http.StatusUnauthorized, map[string]string{"error": "invalid journal token"})
			return
		}
		if r.Method == http.MethodPost {
			f.lastBody = readBody(r)
			write(w, http.StatusCreated, map[string]any{"entry_id": "e1", "entry_date": "2025-03-01", "word_count": 3})
			return
		}
		write(w, http.StatusOK, []map[string]any{
			{"entry_id": "e1", "entry_date": "2025-03-01", "prompt_used": "What made you smile?", "word_count": 3},
		})
	})
	mux.HandleFunc("/journal/entries/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		if strings.HasSuffix(r.URL.Path, "/missing") {
			write(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			write(w, http.StatusOK, map[string]any{"entry_id": "e1", "entry_date": "2025-03-01", "word_count": 3, "content": "Today was good"})
		case http.MethodPut:
			f.lastBody = readBody(r)
			write(w, http.StatusOK, map[string]any{"entry_id": "e1", "word_count": 2})
		case http.MethodDelete:
			write(w, http.StatusOK, map[string]bool{"success": true})
		}
	})
	return mux
}

type harness struct {
	api         *fakeAPI
	url         string
	sessionPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &fakeAPI{expiresAt: time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return &harness{api: api, url: srv.URL, sessionPath: filepath.Join(t.TempDir(), "session.json")}
}

// pins feeds successive PIN prompts.
func pins(t *testing.T, values ...string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	i := 0
	readPassword = func(int) ([]byte, error) {
		require.Less(t, i, len(values), "unexpected PIN prompt")
		v := values[i]
		i++
		return []byte(v), nil
	}
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(stdin), &out)
	cmd.SetArgs(append([]string{"--server", h.url, "--user", "u1", "--session", h.sessionPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSetupAndUnlock(t *testing.T) {
	h := newHarness(t)

	pins(t, "1234", "1234", "1234")
	out, err := h.run(t, "", "setup")
	require.NoError(t, err)
	assert.Contains(t, out, "Journal PIN saved.")
	assert.Equal(t, "pin", h.api.lastBody["auth_method"])

	out, err = h.run(t, "", "unlock")
	require.NoError(t, err)
	assert.Contains(t, out, "Journal unlocked until")

	s, err := session.Load(h.sessionPath)
	require.NoError(t, err)
	tok, ok := s.TokenFor("u1", time.Now())
	assert.True(t, ok)
	assert.Equal(t, "tok-u1", tok)

	out, err = h.run(t, "", "lock")
	require.NoError(t, err)
	assert.Contains(t, out, "Journal locked.")
	s, err = session.Load(h.sessionPath)
	require.NoError(t, err)
	_, ok = s.TokenFor("u1", time.Now())
	assert.False(t, ok)
}

func TestSetup_Mismatch(t *testing.T) {
	h := newHarness(t)
	pins(t, "1234", "4321")
	_, err := h.run(t, "", "setup")
	assert.EqualError(t, err, "PINs do not match")
	assert.Empty(t, h.api.pin)
}

func TestUnlock_WrongPINThenLocked(t *testing.T) {
	h := newHarness(t)
	h.api.pin = "1234"

	pins(t, "0000", "0000", "0000", "1234")
	_, err := h.run(t, "", "unlock")
	assert.EqualError(t, err, "wrong PIN, 2 attempt(s) remaining")
	_, err = h.run(t, "", "unlock")
	assert.EqualError(t, err, "wrong PIN, 1 attempt(s) remaining")
	_, err = h.run(t, "", "unlock")
	assert.EqualError(t, err, "journal locked, try again in 15m0s")
	_, err = h.run(t, "", "unlock")
	assert.EqualError(t, err, "journal locked, try again in 15m0s", "correct PIN while locked")
}

func TestUnlock_NotConfigured(t *testing.T) {
	h := newHarness(t)
	pins(t, "1234")
	_, err := h.run(t, "", "unlock")
	assert.EqualError(t, err, "journal PIN is not set, run 'gophjournal setup' first")
}

func TestEntries_UnlocksOnceThenReusesToken(t *testing.T) {
	h := newHarness(t)
	h.api.pin = "1234"
	pins(t, "1234")

	out, err := h.run(t, "", "entries", "create", "--prompt", "What made you smile?", "Today", "was", "good")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved entry e1 for 2025-03-01 (3 words).")
	assert.Equal(t, "Today was good", h.api.lastBody["content"])
	assert.Equal(t, "What made you smile?", h.api.lastBody["prompt_used"])

	out, err = h.run(t, "", "entries", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "e1")
	assert.Contains(t, out, "What made you smile?")

	out, err = h.run(t, "", "entries", "get", "e1")
	require.NoError(t, err)
	assert.Contains(t, out, "Today was good")

	out, err = h.run(t, "second draft\n\n", "entries", "update", "e1")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated entry e1")
	assert.Equal(t, "second draft", h.api.lastBody["content"])

	out, err = h.run(t, "", "entries", "delete", "e1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted.")

	_, err = h.run(t, "", "entries", "get", "missing")
	assert.EqualError(t, err, "entry not found")

	assert.Equal(t, 1, h.api.unlocks)
	assert.Equal(t, "Bearer tok-u1", h.api.lastAuth)
}

func TestEntries_RejectedTokenClearsSession(t *testing.T) {
	h := newHarness(t)
	s := session.New(h.sessionPath)
	s.Set("u1", "stale", time.Now().Add(time.Hour))
	require.NoError(t, s.Save())

	_, err := h.run(t, "", "entries", "list")
	assert.EqualError(t, err, "journal token rejected, run 'gophjournal unlock' again")

	loaded, err := session.Load(h.sessionPath)
	require.NoError(t, err)
	assert.Empty(t, loaded.AccessToken)
}

func TestRequiresUser(t *testing.T) {
	t.Setenv("JOURNAL_CLIENT_USER_ID", "")
	var out bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(""), &out)
	cmd.SetArgs([]string{"--session", filepath.Join(t.TempDir(), "s.json"), "lock"})
	assert.Error(t, cmd.Execute())
}
