package command

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/suborbital/zsbind/engine"
	"github.com/suborbital/zsbind/release"
)

const (
	inlineSource = "1 + 2;"
	inlineName   = "<test>"
)

// Root is the zsbind command. With a script argument it runs that file through
// libzscript, without one it evaluates a fixed inline snippet and prints the value.
func Root(open Opener, lookuper envconfig.Lookuper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zsbind [script]",
		Short: "run ZScript programs through libzscript",
		Long: `
zsbind loads the libzscript shared library and drives it through its C ABI.

Passing a script path runs that file, and its exit code becomes the exit code of zsbind
(65 compile error, 70 runtime error, 74 file I/O error). Without arguments a small inline
program is evaluated and its last value printed.`,
		Version:       release.ZsbindDotVersion,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := setup(cmd, open, lookuper)
			if err != nil {
				return err
			}

			defer h.close()

			argv := append([]string{cmd.Root().Name()}, args...)

			code := engine.ExitOK

			err = engine.With(h.lib, argv, func(e *engine.Engine) error {
				if len(args) == 0 {
					return runInline(e, cmd.OutOrStdout())
				}

				var runErr error
				code, runErr = e.RunFile(args[0])

				return errors.Wrap(runErr, "failed to RunFile")
			}, h.mods...)
			if err != nil {
				return err
			}

			if code != engine.ExitOK {
				return &ExitError{Path: args[0], Code: code}
			}

			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	addFlags(cmd.PersistentFlags())

	cmd.AddCommand(Repl(open, lookuper))

	return cmd
}

func runInline(e *engine.Engine, out io.Writer) error {
	res, err := e.Interpret(inlineSource, inlineName)
	if err != nil {
		return errors.Wrap(err, "failed to Interpret")
	}

	if res.OK() {
		fmt.Fprintf(out, "Last value: %s\n", res.Value)
	} else {
		fmt.Fprintf(out, "Execution failed with code %d\n", int32(res.Code))
	}

	return nil
}
