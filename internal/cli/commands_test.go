package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/web2/internal/store"
	"github.com/roach88/web2/internal/testutil"
)

func TestSaveCommand_Creates(t *testing.T) {
	url, st := newBackend(t)

	out, _, err := execute(t, "save", "--url", url, "--name", "alice", "--age", "30")
	require.NoError(t, err)
	assert.Equal(t, "User{id=1 name=\"alice\" age=30}\n", out)

	rec, err := st.Get(context.Background(), "users", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec["name"])
}

func TestSaveCommand_UpdatesWithID(t *testing.T) {
	url, st := newBackend(t)
	seedUsers(t, st, store.Record{"name": "alice", "age": 30})

	out, _, err := execute(t, "save", "--url", url, "--id", "1", "--name", "bob", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, "bob", data["name"])
}

func TestSaveCommand_MissingIDFails(t *testing.T) {
	url, _ := newBackend(t)

	out, _, err := execute(t, "save", "--url", url, "--id", "7", "--name", "ghost", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestSaveCommand_ServerError(t *testing.T) {
	b := testutil.NewBackend(t)
	b.FailNext(http.StatusInternalServerError)

	out, _, err := execute(t, "save", "--url", b.URL("users"), "--name", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_STATUS]: save failed")
	assert.Nil(t, b.Record("users", 1))
}

func TestFetchCommand(t *testing.T) {
	url, st := newBackend(t)
	seedUsers(t, st, store.Record{"name": "alice", "age": 30})

	out, _, err := execute(t, "fetch", "1", "--url", url)
	require.NoError(t, err)
	assert.Equal(t, "User{id=1 name=\"alice\" age=30}\n", out)
}

func TestFetchCommand_Errors(t *testing.T) {
	url, _ := newBackend(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"not found", []string{"fetch", "9", "--url", url}, ExitFailure},
		{"not a number", []string{"fetch", "abc", "--url", url}, ExitCommandError},
		{"zero", []string{"fetch", "0", "--url", url}, ExitCommandError},
		{"missing arg", []string{"fetch", "--url", url}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
		})
	}
}

func TestListCommand(t *testing.T) {
	url, st := newBackend(t)
	seedUsers(t, st,
		store.Record{"name": "alice", "age": 30},
		store.Record{"name": "bob", "age": 41},
		store.Record{"name": "carol"},
	)

	out, _, err := execute(t, "list", "--url", url)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		`User{id=1 name="alice" age=30}`,
		`User{id=2 name="bob" age=41}`,
		`User{id=3 name="carol"}`,
	}, "\n")+"\n", out)
}

func TestListCommand_Empty(t *testing.T) {
	url, _ := newBackend(t)

	out, _, err := execute(t, "list", "--url", url)
	require.NoError(t, err)
	assert.Equal(t, "no users\n", out)

	out, _, err = execute(t, "list", "--url", url, "--format", "json")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, []any{}, resp.Data)
}

func TestSeedCommand(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "db.yaml")
	dbPath := filepath.Join(dir, "web2.db")
	require.NoError(t, os.WriteFile(seedPath, []byte(`users:
  - {id: 1, name: alice, age: 30}
  - {id: 2, name: bob, age: 41}
`), 0o644))

	out, _, err := execute(t, "seed", seedPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "seeded 2 records from "+seedPath+"\n", out)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	recs, err := st.List(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "bob", recs[1]["name"])
}

func TestSeedCommand_BadFile(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "db.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte("users:\n  - {name: no-id}\n"), 0o644))

	_, _, err := execute(t, "seed", seedPath, "--db", filepath.Join(dir, "web2.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRenderCommand_Golden(t *testing.T) {
	url, st := newBackend(t)
	seedUsers(t, st, store.Record{"name": "alice", "age": 30})

	out, _, err := execute(t, "render", "1", "--url", url)
	require.NoError(t, err)
	testutil.AssertGolden(t, "render_user", []byte(out))
}

func TestRenderCommand_ClickSequenceSaves(t *testing.T) {
	url, st := newBackend(t)
	seedUsers(t, st, store.Record{"name": "alice", "age": 30})

	out, _, err := execute(t, "render", "1", "--url", url, "--format", "json",
		"--type", "input=bob",
		"--click", ".set-name",
		"--click", ".save-model",
	)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Contains(t, data["html"], "User Name: bob")
	// Construction, rename, then the merged save response.
	assert.Equal(t, float64(3), data["renders"])
	assert.Equal(t, "bob", data["user"].(map[string]any)["name"])

	rec, err := st.Get(context.Background(), "users", 1)
	require.NoError(t, err)
	assert.Equal(t, "bob", rec["name"])
}

func TestRenderCommand_Errors(t *testing.T) {
	url, st := newBackend(t)
	seedUsers(t, st, store.Record{"name": "alice", "age": 30})

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"bad type flag", []string{"render", "1", "--url", url, "--type", "novalue"}, ExitCommandError},
		{"unknown user", []string{"render", "5", "--url", url}, ExitFailure},
		{"no match", []string{"render", "1", "--url", url, "--click", ".missing"}, ExitFailure},
		{"bad selector", []string{"render", "1", "--url", url, "--click", "[["}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
		})
	}
}

func TestServeCommand(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "db.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte("users:\n  - {id: 1, name: alice}\n"), 0o644))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPath := filepath.Join(dir, "web2.db")
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		Listener:    l,
		Context:     ctx,
	}
	cmd := newServeCommand(opts)
	cmd.SetArgs([]string{"--db", dbPath, "--seed", seedPath})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	url := "http://" + l.Addr().String() + "/users/1"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Equal(t, dbPath, opts.DSN)
	assert.FileExists(t, dbPath)
	assert.NoFileExists(t, "web2.db", "nothing is written to the working directory")
}
