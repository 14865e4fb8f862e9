package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv points every command at a private SQLite file and output
// directory and switches off optional collaborators.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TRIAGE_CONFIG", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "triage.db"))
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("AI_PROVIDER", "none")
	t.Setenv("SOP_SOURCE", "file")
	t.Setenv("SOP_CACHE_FILE", filepath.Join(dir, "sop_cache.json"))
	t.Setenv("TRIAGE_MAILBOXES", "")
	t.Setenv("ROUTING_LABELS", "false")
	t.Setenv("NATS_URL", "")
	t.Setenv("CHAT_WEBHOOK_URL", "")
	t.Setenv("PUBSUB_PROJECT_ID", "")
	t.Setenv("FCM_TOPIC", "")
	t.Setenv("PUSHGATEWAY_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, cmd := range NewRootCommand().Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	t.Fatalf("command %s not registered", name)
	return nil
}

func TestRootCommandRegistersCommands(t *testing.T) {
	want := []string{
		"fetch_sop", "poll_inboxes", "process_inbound", "approval_action",
		"check_outstanding", "run_cycle", "serve", "issue_approval_token",
		"validate_env", "store_credential",
	}
	for _, name := range want {
		cmd := findCommand(t, name)
		assert.NotEmpty(t, cmd.Short, name)
		assert.NotEmpty(t, cmd.Long, name)
		assert.NotNil(t, cmd.Flags().Lookup("output"), "%s has no --output", name)
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"fetch_sop", []string{"page-id", "cache-file"}},
		{"poll_inboxes", []string{"accounts", "query", "overlap-minutes", "max-age-hours", "max-results"}},
		{"process_inbound", []string{"poll-file", "sop-file"}},
		{"approval_action", []string{"action", "draft-id", "approved-by", "notes", "reason"}},
		{"check_outstanding", []string{"lookback-days", "stale-hours", "always-notify"}},
		{"run_cycle", []string{"accounts", "max-results"}},
		{"serve", []string{"addr", "sweep-interval"}},
		{"issue_approval_token", []string{"approver", "ttl"}},
		{"validate_env", []string{"env-file", "require"}},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd := findCommand(t, tt.command)
			for _, f := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(f), "missing --%s", f)
			}
		})
	}
}

func TestRequiredFlags(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "process_inbound")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll-file")

	_, err = run(t, "approval_action", "--action", "approve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft-id")
}

func TestEmitWritesFileAndStdout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "result.json")
	var out bytes.Buffer

	require.NoError(t, emit(&out, path, map[string]interface{}{"ok": true, "count": 2}))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(written))
	assert.JSONEq(t, `{"ok":true,"count":2}`, string(written))
	assert.True(t, strings.HasSuffix(string(written), "\n"))
}

func TestOutputPath(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "")
	a := &app{}
	assert.Equal(t, "custom.json", a.outputPath("fetch_sop", "custom.json"))
	assert.Equal(t, filepath.Join("var", "fetch_sop.json"), a.outputPath("fetch_sop", ""))

	t.Setenv("OUTPUT_DIR", "/tmp/triage")
	assert.Equal(t, filepath.Join("/tmp/triage", "poll_inboxes.json"), a.outputPath("poll_inboxes", ""))
}

func TestValidateEnv(t *testing.T) {
	dir := setupEnv(t)

	good := filepath.Join(dir, "good.env")
	require.NoError(t, os.WriteFile(good, []byte("DATABASE_URL=postgres://db/triage\nSOP_PAGE_ID=1c2f\n"), 0o644))
	out, err := run(t, "validate_env", "--env-file", good, "--require", "DATABASE_URL", "--require", "SOP_PAGE_ID")
	require.NoError(t, err)
	assert.Contains(t, out, `"ok": true`)

	bad := filepath.Join(dir, "bad.env")
	require.NoError(t, os.WriteFile(bad, []byte("DATABASE_URL=postgres://db/triage\nSOP_PAGE_ID=changeme\nnot a line\n"), 0o644))
	out, err = run(t, "validate_env", "--env-file", bad, "--require", "DATABASE_URL", "--require", "NOTION_API_KEY")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckFailed))

	var report struct {
		OK           bool     `json:"ok"`
		Missing      []string `json:"missing"`
		Placeholders []string `json:"placeholders"`
		Malformed    []struct {
			Line int `json:"line"`
		} `json:"malformed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.OK)
	assert.Equal(t, []string{"NOTION_API_KEY"}, report.Missing)
	assert.Equal(t, []string{"SOP_PAGE_ID"}, report.Placeholders)
	require.Len(t, report.Malformed, 1)
	assert.Equal(t, 3, report.Malformed[0].Line)

	_, err = os.Stat(filepath.Join(dir, "out", "validate_env.json"))
	assert.NoError(t, err)
}

func TestIssueApprovalTokenRequiresSecret(t *testing.T) {
	setupEnv(t)
	t.Setenv("APPROVAL_SIGNING_SECRET", "")

	_, err := run(t, "issue_approval_token", "--approver", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APPROVAL_SIGNING_SECRET")
}

func TestIssueApprovalToken(t *testing.T) {
	setupEnv(t)
	t.Setenv("APPROVAL_SIGNING_SECRET", "s3cret")

	out, err := run(t, "issue_approval_token", "--approver", "alice@example.com", "--ttl", "2h")
	require.NoError(t, err)

	var issued struct {
		Token   string `json:"token"`
		Subject string `json:"subject"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &issued))
	assert.Equal(t, "alice@example.com", issued.Subject)
	assert.Equal(t, 2, strings.Count(issued.Token, "."))
}

func TestReadSecret(t *testing.T) {
	secret, err := readSecret(strings.NewReader("  token-value \nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "token-value", secret)

	_, err = readSecret(strings.NewReader(""))
	assert.Error(t, err)
}
