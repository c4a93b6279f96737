package gameserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const consoleHelp = `commands:
  start <host> <opponent> [limit]   open a session (limit defaults to 3)
  add <session> <user> <instance>   add one of your balls
  confirm <session> <user>          mark yourself ready
  cancel <session> <user>           drop the session
  quick <id> <id> [<id> <id> ...]   run 1v1, 2v2 or 3v3 immediately
  help                              show this text
  quit                              exit`

// errQuit is returned by Execute for the quit command.
var errQuit = errors.New("quit")

// Console drives a BattleHandler from text commands, one per line.
type Console struct {
	handler     *BattleHandler
	out         io.Writer
	artifactDir string
	logger      *zap.Logger
}

// NewConsole creates a Console writing replies to out. When artifactDir is
// non-empty every finished battle transcript is also saved there.
//
// Precondition: handler, out and logger must be non-nil.
func NewConsole(handler *BattleHandler, out io.Writer, artifactDir string, logger *zap.Logger) *Console {
	return &Console{handler: handler, out: out, artifactDir: artifactDir, logger: logger}
}

// Run reads commands from in until EOF, quit, or ctx is cancelled.
// Command errors are reported to the output and do not stop the loop.
//
// Postcondition: Returns nil on EOF or quit, ctx.Err() on cancellation, or a read error.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		reply, err := c.Execute(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(c.out, reply)
	}
	return sc.Err()
}

// Execute runs a single command line and returns the reply text.
func (c *Console) Execute(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		return consoleHelp, nil
	case "quit", "exit":
		return "", errQuit
	case "start":
		if len(args) < 2 || len(args) > 3 {
			return "", fmt.Errorf("usage: start <host> <opponent> [limit]")
		}
		ids, err := parseIDs(args[:2])
		if err != nil {
			return "", err
		}
		limit := 3
		if len(args) == 3 {
			if limit, err = strconv.Atoi(args[2]); err != nil {
				return "", fmt.Errorf("invalid limit %q", args[2])
			}
		}
		s, err := c.handler.StartSession(ids[0], ids[1], limit)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("session %s: %d vs %d, up to %d balls each", s.ID, s.Host, s.Opponent, s.Limit), nil
	case "add":
		if len(args) != 3 {
			return "", fmt.Errorf("usage: add <session> <user> <instance>")
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return "", err
		}
		s, err := c.handler.AddInstance(ctx, args[0], ids[0], ids[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("session %s: team A %v, team B %v", s.ID, s.TeamA, s.TeamB), nil
	case "confirm":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: confirm <session> <user>")
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return "", err
		}
		out, err := c.handler.Confirm(ctx, args[0], ids[0])
		if err != nil {
			return "", err
		}
		if out == nil {
			return fmt.Sprintf("session %s: waiting for the other player", args[0]), nil
		}
		return c.finish(out)
	case "cancel":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: cancel <session> <user>")
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return "", err
		}
		if err := c.handler.Cancel(args[0], ids[0]); err != nil {
			return "", err
		}
		return fmt.Sprintf("session %s cancelled", args[0]), nil
	case "quick":
		ids, err := parseIDs(args)
		if err != nil {
			return "", err
		}
		out, err := c.handler.QuickBattle(ctx, ids)
		if err != nil {
			return "", err
		}
		return c.finish(out)
	default:
		return "", fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func (c *Console) finish(out *Outcome) (string, error) {
	if c.artifactDir != "" {
		path, err := SaveTranscript(c.artifactDir, out)
		if err != nil {
			c.logger.Error("saving transcript", zap.String("battle", out.SessionID), zap.Error(err))
		} else {
			c.logger.Info("transcript saved", zap.String("path", path))
		}
	}
	return FormatOutcome(out), nil
}

// FormatOutcome renders the transcript followed by a summary line.
func FormatOutcome(out *Outcome) string {
	var b strings.Builder
	for _, line := range out.Transcript {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "[battle %s: winner=%s turns=%d]", out.SessionID, out.Verdict, out.Turns)
	return b.String()
}

// SaveTranscript writes the transcript to dir/out.Artifact.
//
// Postcondition: Returns the written path or an error.
func SaveTranscript(dir string, out *Outcome) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating transcript dir: %w", err)
	}
	path := filepath.Join(dir, out.Artifact)
	data := strings.Join(out.Transcript, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	return path, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
