package gameserver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestConsole(t *testing.T, dir string) (*Console, *bytes.Buffer) {
	t.Helper()
	h, _ := newTestHandler(t, nil)
	var out bytes.Buffer
	return NewConsole(h, &out, dir, zaptest.NewLogger(t)), &out
}

func TestConsole_SessionFlow(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, _ := newTestConsole(t, dir)

	reply, err := c.Execute(ctx, "start 1 2 1")
	require.NoError(t, err)
	id := regexp.MustCompile(`^session ([0-9a-f]{8}):`).FindStringSubmatch(reply)
	require.Len(t, id, 2, reply)

	reply, err = c.Execute(ctx, "add "+id[1]+" 1 101")
	require.NoError(t, err)
	assert.Contains(t, reply, "team A [101]")
	_, err = c.Execute(ctx, "add "+id[1]+" 2 201")
	require.NoError(t, err)

	reply, err = c.Execute(ctx, "confirm "+id[1]+" 1")
	require.NoError(t, err)
	assert.Contains(t, reply, "waiting")

	reply, err = c.Execute(ctx, "confirm "+id[1]+" 2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "-- Turn 1: #101 Sparta vs #201 Athens --"))
	assert.Contains(t, reply, "winner=A")

	data, err := os.ReadFile(filepath.Join(dir, "battle_"+id[1]+".txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "Team A wins!\n"))
}

func TestConsole_Errors(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConsole(t, "")

	for _, line := range []string{
		"start 1",
		"start x 2",
		"start 1 2 9",
		"add abc 1",
		"confirm nope 1",
		"cancel nope 1",
		"quick 101",
		"quick 101 x",
		"dance",
	} {
		_, err := c.Execute(ctx, line)
		assert.Error(t, err, line)
	}
}

func TestConsole_Run(t *testing.T) {
	c, out := newTestConsole(t, "")
	script := strings.Join([]string{
		"# comment lines are ignored",
		"help",
		"quick 101 201",
		"bogus",
		"quit",
		"quick 101 201",
	}, "\n")

	require.NoError(t, c.Run(context.Background(), strings.NewReader(script)))
	text := out.String()
	assert.Contains(t, text, "commands:")
	assert.Contains(t, text, `error: unknown command "bogus"`)
	assert.Equal(t, 1, strings.Count(text, "-- Turn 1:"), "commands after quit must not run")
}

func TestConsole_RunCancelled(t *testing.T) {
	c, _ := newTestConsole(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Run(ctx, strings.NewReader("help\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatOutcome(t *testing.T) {
	out := &Outcome{SessionID: "abcd1234", Transcript: []string{"line one", "Battle ended in a draw."}, Turns: 3}
	assert.Equal(t, "line one\nBattle ended in a draw.\n[battle abcd1234: winner=draw turns=3]", FormatOutcome(out))
}
