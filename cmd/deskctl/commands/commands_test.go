package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/api"
)

// fakeDesk answers the endpoints the CLI uses.
type fakeDesk struct {
	mu     sync.Mutex
	writes []api.Write
	reject bool
}

func (f *fakeDesk) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/health/live":
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case "/api/v1/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret-pass" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials","code":"UNAUTHORIZED"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(api.AuthResponse{
			User:   api.User{ID: uuid.NewString(), FullName: "Ada Agent", Email: body["email"], Role: "agent"},
			Tokens: auth.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
		})
	case "/api/v1/sync/writes":
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var write api.Write
		_ = json.NewDecoder(r.Body).Decode(&write)

		f.mu.Lock()
		reject := f.reject
		if !reject {
			f.writes = append(f.writes, write)
		}
		f.mu.Unlock()

		if reject {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"invalid status transition","code":"BAD_REQUEST"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(api.WriteResult{ID: write.ID.String()})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeDesk) Writes() []api.Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Write(nil), f.writes...)
}

type cli struct {
	t    *testing.T
	api  string
	data string
}

func newCLI(t *testing.T, handler http.Handler) *cli {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &cli{t: t, api: ts.URL, data: filepath.Join(t.TempDir(), "desk.db")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", c.api, "--data", c.data, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_LoginQueueSync(t *testing.T) {
	desk := &fakeDesk{}
	c := newCLI(t, desk)

	out, err := c.run("login", "--email", "ada@example.com", "--password", "secret-pass")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada@example.com (agent)")

	out, err = c.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Agent <ada@example.com>")

	out, err = c.run("queue", "create", "--title", "Printer jammed", "--priority", "high")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 pending)")

	out, err = c.run("queue", "status", "12", "resolved")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 pending)")

	out, err = c.run("pending")
	require.NoError(t, err)
	assert.Contains(t, out, "ticket.create")
	assert.Contains(t, out, "ticket.status")

	out, err = c.run("sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced 2 write(s)")

	writes := desk.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "ticket.create", writes[0].Kind)
	assert.JSONEq(t, `{"title":"Printer jammed","description":"","priority":"HIGH","issueType":"OTHER"}`, string(writes[0].Payload))
	assert.Equal(t, "ticket.status", writes[1].Kind)
	assert.JSONEq(t, `{"ticketId":12,"status":"RESOLVED"}`, string(writes[1].Payload))

	out, err = c.run("pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing pending")
}

func TestCLI_SyncHaltsOnRejectedWrite(t *testing.T) {
	desk := &fakeDesk{reject: true}
	c := newCLI(t, desk)

	_, err := c.run("login", "-e", "ada@example.com", "-p", "secret-pass")
	require.NoError(t, err)
	_, err = c.run("queue", "status", "3", "CLOSED")
	require.NoError(t, err)

	out, err := c.run("sync")
	require.Error(t, err)
	assert.Contains(t, out, "Synced 0 write(s)")
	assert.Contains(t, out, "1 write(s) still pending")

	out, err = c.run("pending")
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "queued write rejected")
}

func TestCLI_WrongPassword(t *testing.T) {
	c := newCLI(t, &fakeDesk{})

	_, err := c.run("login", "-e", "ada@example.com", "-p", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")

	out, err := c.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestCLI_Logout(t *testing.T) {
	c := newCLI(t, &fakeDesk{})

	_, err := c.run("login", "-e", "ada@example.com", "-p", "secret-pass")
	require.NoError(t, err)

	out, err := c.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	out, err = c.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestCLI_SyncOffline(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	apiURL := ts.URL
	ts.Close()

	c := &cli{t: t, api: apiURL, data: filepath.Join(t.TempDir(), "desk.db")}
	_, err := c.run("queue", "create", "-t", "offline ticket")
	require.NoError(t, err)

	out, err := c.run("sync")
	require.Error(t, err)
	assert.Contains(t, out, "1 write(s) stay queued")
}

func TestParseTicketID(t *testing.T) {
	id, err := parseTicketID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseTicketID(bad)
		assert.Error(t, err, bad)
	}
}
