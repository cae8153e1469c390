package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes a fresh root command against the store at metaDB and
// returns its stdout.
func run(t *testing.T, metaDB string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("META_DB_PATH", "")
	t.Setenv("INTAKECTL_OUTPUT", "")
	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--meta-db", metaDB}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func testStore(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "meta.sqlite")
}

func TestCLI_GrantListRevoke(t *testing.T) {
	store := testStore(t)

	out, err := run(t, store, "grant", "--token", "s3cr3t-token", "dockerAgentEvents", "metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "granted s3cr3t-t to 2 collection(s)")
	assert.NotContains(t, out, "s3cr3t-token")

	out, err = run(t, store, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "KEY PREFIX")
	assert.NotContains(t, out, "s3cr3t-token")

	_, err = run(t, store, "revoke", "--token", "s3cr3t-token", "metrics")
	require.NoError(t, err)

	out, err = run(t, store, "-o", "json", "list")
	require.NoError(t, err)
	var rows []grantRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "dockerAgentEvents", rows[0].Collection)
	assert.Equal(t, "s3cr3t-t", rows[0].KeyPrefix)
}

func TestCLI_GrantGenerate(t *testing.T) {
	store := testStore(t)

	out, err := run(t, store, "-o", "json", "grant", "--generate", "events")
	require.NoError(t, err)

	var res struct {
		Token       string   `json:"token"`
		KeyPrefix   string   `json:"key_prefix"`
		Collections []string `json:"collections"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Token, 48)
	assert.Equal(t, res.Token[:8], res.KeyPrefix)
	assert.Equal(t, []string{"events"}, res.Collections)
}

func TestCLI_GrantFlagsValidation(t *testing.T) {
	store := testStore(t)

	_, err := run(t, store, "grant", "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token or --generate")

	_, err = run(t, store, "grant", "--token", "abc", "--generate", "events")
	require.Error(t, err)

	_, err = run(t, store, "grant", "--token", "abc")
	require.Error(t, err, "at least one collection")
}

func TestCLI_GrantRejectsUnwritableCollection(t *testing.T) {
	store := testStore(t)

	_, err := run(t, store, "grant", "--token", "s3cr3t-token", "events", "a.b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grant a.b")

	out, err := run(t, store, "-o", "json", "list")
	require.NoError(t, err)
	var rows []grantRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Empty(t, rows, "no collection is granted when any name is invalid")
}

func TestCLI_ShortTokenPrefixIsHashed(t *testing.T) {
	out, err := run(t, testStore(t), "grant", "--token", "default", "events")
	require.NoError(t, err)
	assert.NotContains(t, out, "default")
	assert.Contains(t, out, "granted h:")
}

func TestCLI_RevokeUnknownGrant(t *testing.T) {
	_, err := run(t, testStore(t), "revoke", "--token", "nope", "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoke events")
}

func TestCLI_Seed(t *testing.T) {
	store := testStore(t)
	seed := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`credentials:
  - token: default
    collections: [dockerAgentEvents]
  - token: other-key
    collections: [a, b]
`), 0o600))

	out, err := run(t, store, "seed", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "applied 3 grant(s)")

	out, err = run(t, store, "seed", seed)
	require.NoError(t, err, "seeding twice is idempotent")
	assert.Contains(t, out, "applied 3 grant(s)")

	out, err = run(t, store, "-o", "json", "list")
	require.NoError(t, err)
	var rows []grantRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 3)
}

func TestCLI_UnsupportedOutput(t *testing.T) {
	_, err := run(t, testStore(t), "-o", "yaml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestCLI_MetaDBFromEnv(t *testing.T) {
	store := testStore(t)
	t.Setenv("META_DB_PATH", store)

	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"grant", "--token", "envtoken", "events"})
	require.NoError(t, rootCmd.Execute())

	_, err := os.Stat(store)
	assert.NoError(t, err)
}

func TestCLI_OutputFromEnv(t *testing.T) {
	store := testStore(t)
	t.Setenv("INTAKECTL_OUTPUT", "json")
	t.Setenv("META_DB_PATH", store)

	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())

	var v map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, "dev", v["version"])
}

func TestApplyEnv_FlagWins(t *testing.T) {
	t.Setenv("INTAKECTL_OUTPUT", "json")

	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--meta-db", testStore(t), "-o", "table", "version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "intakectl version dev (commit: none)\n", out.String())
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, testStore(t), "version")
	require.NoError(t, err)
	assert.Equal(t, "intakectl version dev (commit: none)\n", out)
}
