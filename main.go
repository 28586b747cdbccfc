package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"

	"github.com/suborbital/zsbind/command"
)

func main() {
	cmd := command.Root(command.DefaultOpener, envconfig.OsLookuper())

	if err := cmd.Execute(); err != nil {
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Error())
			os.Exit(int(exitErr.Code))
		}

		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
