package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/activitylog/internal/auth"
)

func runApp(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	err := newApp(strings.NewReader(stdin), &out).Run(append([]string{"activitylog"}, args...))
	require.NoError(t, err, out.String())
	return out.String()
}

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("ACTIVITYLOG_CONFIG", "")
	t.Setenv("ACTIVITYLOG_STORE_BACKEND", "file")
	t.Setenv("ACTIVITYLOG_STORE_DIR", dir)
	t.Setenv("ACTIVITYLOG_LOGGING_LEVEL", "error")
}

func TestAddListEditDelete(t *testing.T) {
	setupEnv(t)

	require.Contains(t, runApp(t, "", "list"), "no activities recorded")

	out := runApp(t, "Run\n30\n2024-03-05\ny\n", "add")
	require.Contains(t, out, "added ")
	id := strings.TrimSpace(out[strings.LastIndex(out, "added ")+len("added "):])
	require.NotEmpty(t, id)

	runApp(t, "", "add", "--type", "Swim", "--duration", "20", "--date", "2024-03-06")

	out = runApp(t, "", "list")
	require.Contains(t, out, id)
	require.Contains(t, out, "Run")
	require.Contains(t, out, "Swim")
	require.Less(t, strings.Index(out, "Run"), strings.Index(out, "Swim"))

	// Blank answers keep the pre-filled values.
	runApp(t, "Trail\n\n\ny\n", "edit", id)
	out = runApp(t, "", "list")
	require.Contains(t, out, "Trail")
	require.Contains(t, out, "2024-03-05")

	require.Contains(t, runApp(t, "n\n", "delete", id), "cancelled")
	require.Contains(t, runApp(t, "", "list"), "Trail")

	require.Contains(t, runApp(t, "y\n", "delete", id), "deleted 1")
	require.NotContains(t, runApp(t, "", "list"), "Trail")
}

func TestCancelledAddWritesNothing(t *testing.T) {
	setupEnv(t)

	require.Contains(t, runApp(t, "Run\n30\n2024-03-05\nn\n", "add"), "cancelled")
	require.Contains(t, runApp(t, "", "list"), "no activities recorded")
}

func TestEditUnknownID(t *testing.T) {
	setupEnv(t)

	var out bytes.Buffer
	err := newApp(strings.NewReader(""), &out).Run([]string{"activitylog", "edit", "missing"})
	require.ErrorContains(t, err, "activity not found")
}

func TestToken(t *testing.T) {
	setupEnv(t)
	t.Setenv("ACTIVITYLOG_AUTH_SECRET", "s3cret")

	out := runApp(t, "", "token", "--subject", "alice", "--scope", auth.ScopeActivitiesRead)
	claims, err := auth.Parse(strings.TrimSpace(out), auth.Config{Secret: "s3cret", Issuer: "activitylog"})
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.True(t, claims.HasScope(auth.ScopeActivitiesRead))
	require.False(t, claims.HasScope(auth.ScopeActivitiesWrite))
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
