package command

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/suborbital/zsbind/engine"
	"github.com/suborbital/zsbind/engine/buffer"
)

const (
	promptPrimary  = ">>> "
	promptContinue = "... "
	replName       = "<repl>"
)

// Repl starts an interactive session against a single engine
func Repl(open Opener, lookuper envconfig.Lookuper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "interactive ZScript session",
		Long: `Start an interactive session backed by one libzscript instance.

Lines are collected until every opening brace '{' is matched, the "... " prompt
shows that a block is still open. Each complete block is evaluated and its value printed.
Ctrl+C discards the pending block, Ctrl+D exits.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			historyFile, err := cmd.Flags().GetString(historyFlag)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("get string flag '%s' value", historyFlag))
			}

			if historyFile == "" {
				home, _ := os.UserHomeDir()
				historyFile = filepath.Join(home, ".zsbind_history")
			}

			h, err := setup(cmd, open, lookuper)
			if err != nil {
				return err
			}

			defer h.close()

			return engine.With(h.lib, []string{cmd.Root().Name()}, func(e *engine.Engine) error {
				rl, err := readline.NewEx(&readline.Config{
					Prompt:                 promptPrimary,
					HistoryFile:            historyFile,
					HistoryLimit:           1000,
					DisableAutoSaveHistory: true,
					InterruptPrompt:        "^C",
					EOFPrompt:              "exit",
					Stdin:                  io.NopCloser(cmd.InOrStdin()),
					Stdout:                 cmd.OutOrStdout(),
					Stderr:                 cmd.ErrOrStderr(),
				})
				if err != nil {
					return errors.Wrap(err, "failed to readline.NewEx")
				}

				defer rl.Close()

				fmt.Fprintln(cmd.ErrOrStderr(), "zsbind REPL (type Ctrl+D to exit)")

				s := newSession(e, cmd.OutOrStdout(), cmd.ErrOrStderr())

				for {
					line, err := rl.Readline()

					switch {
					case err == readline.ErrInterrupt:
						s.reset()
						rl.SetPrompt(s.prompt())

						continue
					case err == io.EOF:
						fmt.Fprintln(cmd.ErrOrStderr(), "\nExiting REPL")
						return nil
					case err != nil:
						return errors.Wrap(err, "failed to Readline")
					}

					block, err := s.feed(line)
					if err != nil {
						return err
					}

					if block != "" {
						if err := rl.SaveHistory(block); err != nil {
							h.logger.Debug().Err(err).Msg("failed to SaveHistory")
						}
					}

					rl.SetPrompt(s.prompt())
				}
			}, h.mods...)
		},
	}

	cmd.Flags().String(historyFlag, "", "history file path (default: ~/.zsbind_history)")

	return cmd
}

// session accumulates REPL input into complete blocks and evaluates them
type session struct {
	engine *engine.Engine
	out    io.Writer
	errOut io.Writer

	pending strings.Builder
	depth   int
}

func newSession(e *engine.Engine, out, errOut io.Writer) *session {
	return &session{
		engine: e,
		out:    out,
		errOut: errOut,
	}
}

func (s *session) prompt() string {
	if s.depth > 0 {
		return promptContinue
	}

	return promptPrimary
}

func (s *session) reset() {
	s.pending.Reset()
	s.depth = 0
}

// feed adds one line of input and returns the block it completed and evaluated, if any.
// Only failures that leave the engine unusable are returned as errors.
func (s *session) feed(line string) (string, error) {
	input := strings.TrimSpace(line)

	if input == "" && s.depth == 0 {
		return "", nil
	}

	if s.pending.Len() > 0 {
		s.pending.WriteString("\n")
	}

	s.pending.WriteString(input)
	s.depth += countBlocks(input)

	if s.depth < 0 {
		fmt.Fprintln(s.errOut, "REPL error: unmatched closing brace '}'")
		s.reset()

		return "", nil
	}

	if s.depth > 0 {
		return "", nil
	}

	source := s.pending.String()
	s.reset()

	res, err := s.engine.Interpret(source, replName)
	if err != nil {
		if errors.Is(err, buffer.ErrEmbeddedNull) {
			fmt.Fprintf(s.errOut, "REPL error: %s\n", err)
			return source, nil
		}

		return source, errors.Wrap(err, "failed to Interpret")
	}

	if res.OK() {
		fmt.Fprintln(s.out, res.Value)
	} else {
		fmt.Fprintf(s.errOut, "%s in REPL\n", res.Code)
	}

	return source, nil
}

// countBlocks returns the net number of open blocks in input
func countBlocks(input string) int {
	count := 0

	for _, c := range input {
		switch c {
		case '{':
			count++
		case '}':
			count--
		}
	}

	return count
}
