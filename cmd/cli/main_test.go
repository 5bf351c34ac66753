package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valleykid/growup/ps"
)

// cliEnv runs commands against one on-disk backend, so state carries over
// from one invocation to the next.
type cliEnv struct {
	t    *testing.T
	base []string
}

func newCLIEnv(t *testing.T, backend string) *cliEnv {
	path := filepath.Join(t.TempDir(), "data")
	if backend == "sqlite" {
		path += ".db"
	}
	return &cliEnv{t: t, base: []string{"--backend", backend, "--path", path, "--db", "app"}}
}

func (e *cliEnv) run(args ...string) (string, error) {
	return e.runWithInput("", args...)
}

func (e *cliEnv) runWithInput(input string, args ...string) (string, error) {
	var out bytes.Buffer
	err := execute(append(append([]string{}, e.base...), args...), strings.NewReader(input), &out, io.Discard, false)
	return out.String(), err
}

func (e *cliEnv) must(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "growup %s", strings.Join(args, " "))
	return out
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand(&session{opts: &rootOptions{}})
	require.NotNil(t, cmd)
	assert.Equal(t, "growup", cmd.Use)

	commands := []string{
		"stores", "add-store", "del-store", "has-store", "databases", "drop-db",
		"set", "get", "find", "page", "count", "del", "clear", "export", "import",
		"history", "restore", "snapshot", "recover", "remote", "push", "pull", "shell", "version",
	}
	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestSessionGolden(t *testing.T) {
	env := newCLIEnv(t, "sqlite")

	steps := [][]string{
		{"add-store", "users", "--index", "name"},
		{"set", "users", `[{"name":"a","age":30},{"name":"b"},{"name":"c","age":25}]`},
		{"page", "users", "--index", "name", "--num", "2"},
		{"page", "users", "--index", "name", "--num", "2", "--page", "3"},
		{"get", "users", "2"},
		{"count", "users"},
		{"del", "users", "1"},
		{"find", "users", "--direction", "prev"},
		{"stores"},
		{"has-store", "posts"},
		{"--format", "json", "page", "users", "--num", "1", "--page", "2"},
		{"databases"},
	}

	var transcript bytes.Buffer
	for _, args := range steps {
		transcript.WriteString("$ growup " + strings.Join(args, " ") + "\n")
		transcript.WriteString(env.must(args...))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "session", transcript.Bytes())
}

func TestCommandErrors(t *testing.T) {
	env := newCLIEnv(t, "sqlite")
	env.must("add-store", "users")

	_, err := env.run("get", "users", "99")
	assert.ErrorContains(t, err, "no record in users under key 99")

	_, err = env.run("get", "ghosts", "1")
	assert.Error(t, err)

	_, err = env.run("--format", "xml", "stores")
	assert.ErrorContains(t, err, "invalid format")

	_, err = env.run("history")
	assert.ErrorIs(t, err, errNotGit)

	_, err = env.run("set", "users")
	assert.Error(t, err, "missing value argument")
}

func TestSetKeysAndInlineStores(t *testing.T) {
	env := newCLIEnv(t, "pebble")
	env.must("add-store", "settings")
	env.must("add-store", "accounts", "--key-path", "id", "--unique", "email")

	assert.Equal(t, "\"theme\"\n", env.must("set", "settings", `{"id":"theme","dark":true}`, "--key", "id"))
	assert.Equal(t, "\"raw\"\n", env.must("set", "settings", "hello", "--key", "raw"))
	assert.Equal(t, "hello\n", env.must("get", "settings", "raw"))
	assert.Equal(t, "7\n", env.must("set", "settings", "[1,2]", "--key", "7", "--no-spread"))
	assert.Equal(t, "[1,2]\n", env.must("get", "settings", "7"))

	assert.Equal(t, "[\"a\",\"b\"]\n", env.must("set", "accounts", `[{"id":"a","email":"a@x"},{"id":"b","email":"b@x"}]`))
	_, err := env.run("set", "accounts", `{"id":"c","email":"a@x"}`)
	assert.Error(t, err, "unique email")

	out := env.must("--format", "json", "find", "accounts", "--start", `"b"`, "--end", "false")
	assert.Equal(t, `[{"email":"b@x","id":"b"}]`+"\n", out)

	env.must("del", "accounts", `"a"`, `"z"`)
	assert.Equal(t, "0\n", env.must("count", "accounts"))

	env.must("clear", "settings")
	assert.Equal(t, "(no records)\n", env.must("find", "settings"))
}

func TestExportImportCommands(t *testing.T) {
	env := newCLIEnv(t, "sqlite")
	env.must("add-store", "users")
	env.must("set", "users", `[{"name":"a"},{"name":"b"}]`)

	dump := filepath.Join(t.TempDir(), "users.ndjson")
	assert.Equal(t, "✓ exported 2 record(s)\n", env.must("export", "users", dump))

	env.must("add-store", "copy")
	assert.Equal(t, "✓ imported 2 record(s)\n", env.must("import", "copy", "file://"+dump))
	assert.Equal(t, "2\n", env.must("count", "copy"))

	env.must("del-store", "users")
	assert.Equal(t, "copy\n", env.must("stores"))

	env.must("drop-db")
	assert.Equal(t, "(none)\n", env.must("stores"))
}

func TestGitCommands(t *testing.T) {
	env := newCLIEnv(t, "git")
	env.must("add-store", "notes")
	env.must("set", "notes", `"first"`)
	env.must("set", "notes", `"second"`)

	var txs []ps.Transaction
	require.NoError(t, json.Unmarshal([]byte(env.must("--format", "json", "history")), &txs))
	require.Len(t, txs, 3, "upgrade and two writes")
	assert.Equal(t, "growup <growup@localhost>", txs[0].Author)

	table := env.must("history")
	assert.Contains(t, table, txs[0].Id)
	assert.Contains(t, table, "| id ")

	assert.Equal(t, "✓ restored to "+txs[1].Id+"\n", env.must("restore", txs[1].Id))
	assert.Equal(t, `["first"]`+"\n", env.must("--format", "json", "find", "notes"))

	_, err := env.run("restore", "0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ps.ErrUnknownTx)

	assert.Equal(t, "✓ snapshot before created\n", env.must("snapshot", "before"))
	env.must("set", "notes", `"third"`)
	assert.Equal(t, `["first","third"]`+"\n", env.must("--format", "json", "find", "notes"))
	assert.Equal(t, "✓ recovered snapshot before\n", env.must("recover", "before"))
	assert.Equal(t, `["first"]`+"\n", env.must("--format", "json", "find", "notes"))
	_, err = env.run("recover", "missing")
	assert.Error(t, err)

	remote := t.TempDir()
	env.must("remote", "add", "origin", remote)
	out := env.must("remote", "list")
	assert.Contains(t, out, "| origin | "+remote)
	env.must("remote", "remove", "origin")
	assert.Equal(t, "(none)\n", env.must("remote", "list"))
}

func TestShell(t *testing.T) {
	env := newCLIEnv(t, "sqlite")
	historyFile := filepath.Join(t.TempDir(), "history")

	input := strings.Join([]string{
		"add-store users --index name",
		`set users '{"name":"it''s"}'`,
		`set users "{\"name\":\"quoted\"}"`,
		"count users",
		"get users 99",
		"shell",
		".stores",
		".use other",
		"stores",
		".bogus",
		".history",
		".quit",
	}, "\n") + "\n"

	out, err := env.runWithInput(input, "shell", "--history", historyFile)
	require.NoError(t, err)

	assert.Contains(t, out, "growup vdev")
	assert.Contains(t, out, "growup (app)> ")
	assert.Contains(t, out, "✓ store users ready (version 1)")
	assert.Contains(t, out, "2\n")
	assert.Contains(t, out, "✗ Error: no record in users under key 99")
	assert.Contains(t, out, "✗ Error: already in the shell")
	assert.Contains(t, out, "users\n")
	assert.Contains(t, out, "✓ using database: other")
	assert.Contains(t, out, "growup (other)> (none)")
	assert.Contains(t, out, "✗ Error: unknown command: .bogus")
	assert.Contains(t, out, "    1  add-store users --index name")
	assert.Contains(t, out, "Goodbye!")

	saved, err := os.ReadFile(historyFile)
	require.NoError(t, err)
	assert.Equal(t, 7, strings.Count(string(saved), "\n"), "dot commands are not saved")
}

func TestShellSource(t *testing.T) {
	env := newCLIEnv(t, "sqlite")
	script := filepath.Join(t.TempDir(), "seed.txt")
	require.NoError(t, os.WriteFile(script, []byte(strings.Join([]string{
		"# seed data",
		"add-store users",
		"",
		`set users '[{"name":"a"},{"name":"b"}]'`,
		"get users 42",
	}, "\n")), 0o644))

	out, err := env.runWithInput(".source "+script+"\ncount users\n", "shell", "--history", "")
	require.NoError(t, err)
	assert.Contains(t, out, "[5] ✗ get users 42")
	assert.Contains(t, out, "✓ source complete: 2 succeeded, 1 failed")
	assert.Contains(t, out, "2\n")
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"count users", []string{"count", "users"}},
		{`  set users  '{"a": 1}' `, []string{"set", "users", `{"a": 1}`}},
		{`get users "two words"`, []string{"get", "users", "two words"}},
		{`set kv "say \"hi\""`, []string{"set", "kv", `say "hi"`}},
		{`find a\ b`, []string{"find", "a b"}},
		{`del kv ''`, []string{"del", "kv", ""}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	_, err := splitArgs(`set kv "open`)
	assert.Error(t, err)
}

func TestRecordTable(t *testing.T) {
	var buf bytes.Buffer
	recordTable([]any{"x", 1.5, []any{true}}).render(&buf)
	assert.Equal(t, strings.Join([]string{
		"+--------+",
		"| value  |",
		"+--------+",
		"| x      |",
		"| 1.5    |",
		"| [true] |",
		"+--------+",
		"",
	}, "\n"), buf.String())
}

func TestParseValue(t *testing.T) {
	assert.Nil(t, parseValue(""))
	assert.Equal(t, 1.0, parseValue("1"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "alice", parseValue("alice"))
	assert.Equal(t, "quoted", parseValue(`"quoted"`))
	assert.Equal(t, map[string]any{"a": 1.0}, parseValue(`{"a":1}`))
}
