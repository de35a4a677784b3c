package control

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/app/playback"
)

// LineReader reads one line of console input at a time.
// *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// NewReadline creates a line reader on the process terminal.
func NewReadline(prompt string) (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "e",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open console")
	}
	return rl, nil
}

const consoleHelp = `Press 'p' to pause
Press 'a' to play previous song
Press 'd' to play next song
Press 'r' to rewind
Press 'v <0-100>' to set volume
Press 'e' to exit
`

// Console maps single-character commands to actions.
type Console struct {
	lines      LineReader
	out        io.Writer
	dispatcher *Dispatcher
}

// NewConsole creates a console reading from lines and printing to out.
func NewConsole(lines LineReader, out io.Writer, dispatcher *Dispatcher) *Console {
	return &Console{lines: lines, out: out, dispatcher: dispatcher}
}

// Run reads commands until quit, end of input or interrupt, then requests
// shutdown before returning. It never holds the playback guard while waiting
// for input.
func (c *Console) Run() {
	defer c.dispatcher.Quit()

	fmt.Fprint(c.out, consoleHelp)
	for {
		line, err := c.lines.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				zlog.Info().Msg("console: input closed")
			} else {
				zlog.Warn().Err(err).Msg("console: read failed")
			}
			return
		}

		if quit := c.handle(strings.TrimSpace(line)); quit {
			return
		}
	}
}

// handle runs a single command line and reports whether it was quit.
func (c *Console) handle(line string) bool {
	if line == "" {
		return false
	}

	var err error
	switch {
	case line == "p":
		err = c.dispatcher.Do(ActionPause)
	case line == "a":
		err = c.dispatcher.Do(ActionPrevious)
	case line == "d":
		err = c.dispatcher.Do(ActionNext)
	case line == "r":
		err = c.dispatcher.Do(ActionRestart)
	case line == "e":
		return true
	case line == "h" || line == "?":
		fmt.Fprint(c.out, consoleHelp)
	case line == "v" || strings.HasPrefix(line, "v "):
		var level int
		level, err = playback.ParseVolume(strings.TrimPrefix(line, "v"))
		if err == nil {
			err = c.dispatcher.SetVolume(level)
		}
	default:
		zlog.Debug().Msgf("console: ignoring input: %q", line)
	}

	if err != nil {
		if errors.Is(err, playback.ErrShutdown) {
			return true
		}
		zlog.Warn().Err(err).Msgf("console: command failed: %q", line)
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
	return false
}
