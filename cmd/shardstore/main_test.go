package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/kballard/go-shellquote"
	"github.com/kjk/shardstore/issue"
	"github.com/kjk/shardstore/log"
	"github.com/kjk/shardstore/u"
)

func execute(t *testing.T, cfg *Config, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	log.Close()
	return out.String(), err
}

func testIssues() []issue.Issue {
	return []issue.Issue{
		{
			Key:     "issueA",
			RuleKey: "go:S1186",
			Message: "empty function",
			PrimaryLocation: issue.Location{
				Path:      "path1",
				TextRange: &issue.TextRange{StartLine: 11, EndLine: 12},
			},
		},
		{Key: "issueB", PrimaryLocation: issue.Location{Path: "path2"}},
		{Key: "issueC", Manual: true, PrimaryLocation: issue.Location{Path: "path1"}},
	}
}

func writeJSON(t *testing.T, path string, v any) {
	d, err := json.Marshal(v)
	assert.NoError(t, err)
	w, err := u.CreateFileMaybeCompressed(path)
	assert.NoError(t, err)
	_, err = w.Write(d)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
}

func parseIssues(t *testing.T, s string) []issue.Issue {
	var res []issue.Issue
	assert.NoError(t, json.Unmarshal([]byte(s), &res), "s: '%s'", s)
	return res
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SHARDSTORE_DIR", "/tmp/store")
	t.Setenv("SHARDSTORE_S3_BUCKET", "issues")
	t.Setenv("SHARDSTORE_S3_INSECURE", "true")
	cfg, err := LoadFromEnv()
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/store", cfg.Dir)
	assert.Equal(t, "issues", cfg.S3.Bucket)
	assert.True(t, cfg.S3.Insecure)

	t.Setenv("SHARDSTORE_S3_INSECURE", "maybe")
	_, err = LoadFromEnv()
	assert.Error(t, err)
}

func TestMissingDir(t *testing.T) {
	_, err := execute(t, &Config{}, "", "path", "path1")
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, &Config{}, "", "--dir", dir, "path", "path1", "module1:path1")
	assert.NoError(t, err)
	exp := filepath.Join(dir, "0", "7", "074aeb9c5551d3b52d26cf3d6568599adbff99f1") + "\n" +
		filepath.Join(dir, "1", "8", "18054aada7bd3b7ddd6de55caf50ae7bee376430") + "\n"
	assert.Equal(t, exp, out)

	_, err = execute(t, &Config{Dir: dir}, "", "path")
	assert.Error(t, err)
}

func TestSaveLoadDelete(t *testing.T) {
	cfg := &Config{Dir: t.TempDir()}
	issues := testIssues()
	src := filepath.Join(t.TempDir(), "issues.json.zst")
	writeJSON(t, src, issues)

	out, err := execute(t, cfg, "", "save", "k1", src)
	assert.NoError(t, err)
	assert.Equal(t, "saved 3 issues for 'k1'\n", out)

	out, err = execute(t, cfg, "", "load", "k1")
	assert.NoError(t, err)
	assert.Equal(t, issues, parseIssues(t, out))

	out, err = execute(t, cfg, "", "load", "missing")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(parseIssues(t, out)))

	out, err = execute(t, cfg, "", "delete", "k1", "missing")
	assert.NoError(t, err)
	assert.Equal(t, "deleted 2 keys\n", out)

	out, err = execute(t, cfg, "", "load", "k1")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(parseIssues(t, out)))

	_, err = execute(t, cfg, "", "save", "k1", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSaveNotJSON(t *testing.T) {
	cfg := &Config{Dir: t.TempDir()}
	src := filepath.Join(t.TempDir(), "issues.json")
	assert.NoError(t, os.WriteFile(src, []byte("not json"), 0644))
	_, err := execute(t, cfg, "", "save", "k1", src)
	assert.Error(t, err)
}

func TestCompressFlag(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Dir: dir}
	src := filepath.Join(t.TempDir(), "issues.json")
	writeJSON(t, src, testIssues())

	_, err := execute(t, cfg, "", "--compress", "save", "k1", src)
	assert.NoError(t, err)
	path, err := execute(t, cfg, "", "path", "k1")
	assert.NoError(t, err)
	d, err := os.ReadFile(strings.TrimSpace(path))
	assert.NoError(t, err)
	assert.True(t, u.IsZstd(d))

	out, err := execute(t, cfg, "", "load", "k1")
	assert.NoError(t, err)
	assert.Equal(t, testIssues(), parseIssues(t, out))
}

func TestImportExport(t *testing.T) {
	cfg := &Config{Dir: t.TempDir()}
	src := filepath.Join(t.TempDir(), "issues.json.br")
	writeJSON(t, src, testIssues())

	out, err := execute(t, cfg, "", "import", src)
	assert.NoError(t, err)
	assert.Equal(t, "imported 3 issues\n", out)

	out, err = execute(t, cfg, "", "load", "path1")
	assert.NoError(t, err)
	all := testIssues()
	assert.Equal(t, []issue.Issue{all[0], all[2]}, parseIssues(t, out))

	exported := filepath.Join(t.TempDir(), "export.zst")
	_, err = execute(t, cfg, "", "export", "-o", exported, "path1", "path2", "path3")
	assert.NoError(t, err)

	// import the export into an empty store
	cfg2 := &Config{Dir: t.TempDir()}
	out, err = execute(t, cfg2, "", "import", exported)
	assert.NoError(t, err)
	assert.Equal(t, "imported 3 keys\n", out)
	for _, key := range []string{"path1", "path2"} {
		exp, err := execute(t, cfg, "", "load", key)
		assert.NoError(t, err)
		got, err := execute(t, cfg2, "", "load", key)
		assert.NoError(t, err)
		assert.Equal(t, exp, got)
	}
	out, err = execute(t, cfg2, "", "load", "path3")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(parseIssues(t, out)))

	// -o is required
	_, err = execute(t, cfg, "", "export", "path1")
	assert.Error(t, err)
}

func TestExportFailureRemovesFile(t *testing.T) {
	cfg := &Config{Dir: t.TempDir()}
	out, err := execute(t, cfg, "", "path", "bad")
	assert.NoError(t, err)
	// a directory where a batch file should be makes Load fail
	assert.NoError(t, os.MkdirAll(strings.TrimSpace(out), 0755))

	exported := filepath.Join(t.TempDir(), "export.br")
	_, err = execute(t, cfg, "", "export", "-o", exported, "path1", "bad")
	assert.Error(t, err)
	_, err = os.Stat(exported)
	assert.True(t, os.IsNotExist(err))
}

func TestPushWithoutConfig(t *testing.T) {
	cfg := &Config{Dir: t.TempDir()}
	_, err := execute(t, cfg, "", "push")
	assert.Error(t, err)
	_, err = execute(t, cfg, "", "pull")
	assert.Error(t, err)
}

func TestShell(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Dir: dir}
	src := filepath.Join(t.TempDir(), "my issues.json")
	writeJSON(t, src, testIssues())

	lines := []string{
		shellquote.Join("save", "key with spaces", src),
		shellquote.Join("load", "key with spaces"),
		"bogus",
		"load",
		"path path1",
		"save 'unterminated",
		"help",
		"exit",
		"load never-reached",
	}
	out, err := execute(t, cfg, strings.Join(lines, "\n")+"\n", "shell")
	assert.NoError(t, err)
	assert.Contains(t, out, "saved 3 issues for 'key with spaces'\n")
	assert.Contains(t, out, `"key": "issueA"`)
	assert.Contains(t, out, "error: unknown command 'bogus'")
	assert.Contains(t, out, "error: wrong number of arguments for 'load'")
	assert.Contains(t, out, filepath.Join(dir, "0", "7", "074aeb9c5551d3b52d26cf3d6568599adbff99f1"))
	assert.Contains(t, out, "error: parse error")
	assert.Contains(t, out, "export <file> <key>...")

	// last line without newline, then end of input
	out, err = execute(t, cfg, "delete 'key with spaces'", "shell")
	assert.NoError(t, err)
	assert.Contains(t, out, "deleted 1 keys\n")
}
