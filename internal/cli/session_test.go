package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/ergochat/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/web2/internal/loop"
	"github.com/roach88/web2/internal/model"
	"github.com/roach88/web2/internal/testutil"
	"github.com/roach88/web2/internal/users"
)

func newTestSession(t *testing.T) (*Session, *testutil.Backend, *bytes.Buffer) {
	t.Helper()
	b := testutil.NewBackend(t)
	b.Seed("users", map[string]any{"id": 1, "name": "alice", "age": 30})

	ctx, cancel := context.WithCancel(context.Background())
	l := loop.New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		l.Close()
		cancel()
		<-done
	})

	id := int64(1)
	m := users.New(users.User{ID: &id}, b.URL("users"), model.WithExecutor(l))
	require.NoError(t, m.Fetch(ctx).Wait(ctx))

	var out bytes.Buffer
	s, err := NewSession(ctx, l, m, &out, users.WithRandomAge(func() int { return 7 }))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, b, &out
}

// lines returns a readline-like source that ends with io.EOF.
func lines(in ...string) func() (string, error) {
	return func() (string, error) {
		if len(in) == 0 {
			return "", io.EOF
		}
		line := in[0]
		in = in[1:]
		return line, nil
	}
}

func TestSession_ClickSetAgeRerenders(t *testing.T) {
	s, _, _ := newTestSession(t)

	require.NoError(t, s.Click(".set-age"))

	assert.Equal(t, 7, s.User().GetAge())
	assert.Contains(t, s.HTML(), "User Age: 7")
	assert.Equal(t, 2, s.Renders())
}

func TestSession_TypeThenSave(t *testing.T) {
	s, b, _ := newTestSession(t)

	require.NoError(t, s.Type("input", "dora"))
	require.NoError(t, s.Click(".set-name"))
	require.NoError(t, s.Click(".save-model"))

	assert.Equal(t, "dora", b.Record("users", 1)["name"])
	reqs := b.Requests()
	assert.Equal(t, "PUT", reqs[len(reqs)-1].Method)
	assert.Equal(t, "/users/1", reqs[len(reqs)-1].Path)
}

func TestSession_Exec(t *testing.T) {
	s, _, out := newTestSession(t)

	require.NoError(t, s.Exec("set name erin"))
	require.NoError(t, s.Exec("attrs"))
	assert.Equal(t, "User{id=1 name=\"erin\" age=30}\n", out.String())

	out.Reset()
	require.NoError(t, s.Exec("show"))
	assert.Contains(t, out.String(), "User Name: erin")

	require.NoError(t, s.Exec("   "))
	assert.ErrorIs(t, s.Exec("quit"), ErrQuit)
	assert.ErrorIs(t, s.Exec("exit"), ErrQuit)
}

func TestSession_ExecErrors(t *testing.T) {
	s, _, _ := newTestSession(t)

	tests := []struct {
		line string
		want string
	}{
		{"bogus", `unknown command "bogus"`},
		{"click", "usage: click"},
		{"click .nothing", `no element matches ".nothing"`},
		{"type", "usage: type"},
		{"set age old", `invalid age "old"`},
		{"set color red", `unknown attribute "color"`},
		{"set name", "usage: set"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := s.Exec(tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSession_SaveFailureReported(t *testing.T) {
	s, b, _ := newTestSession(t)
	b.FailNext(500)

	err := s.Exec("save")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, 1, s.Renders())
}

func TestReadLoop(t *testing.T) {
	s, _, out := newTestSession(t)
	var errOut bytes.Buffer

	err := readLoop(s, lines("set age 12", "nope", "attrs", "quit", "attrs"), &errOut)
	require.NoError(t, err)

	assert.Equal(t, "User{id=1 name=\"alice\" age=12}\n", out.String())
	assert.Equal(t, "error: unknown command \"nope\" (try help)\n", errOut.String())
}

func TestReadLoop_EndsOnEOFAndInterrupt(t *testing.T) {
	s, _, _ := newTestSession(t)

	require.NoError(t, readLoop(s, lines(), io.Discard))

	calls := 0
	interrupted := func() (string, error) {
		calls++
		if calls == 1 {
			return "half typed", readline.ErrInterrupt
		}
		return "", readline.ErrInterrupt
	}
	require.NoError(t, readLoop(s, interrupted, io.Discard))
	assert.Equal(t, 2, calls)
}
