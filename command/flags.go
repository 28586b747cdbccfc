package command

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/suborbital/zsbind/options"
)

const (
	libFlag           = "lib"
	configFlag        = "config"
	logLevelFlag      = "log-level"
	failureResultFlag = "failure-result"
	historyFlag       = "history"
)

func addFlags(flags *pflag.FlagSet) {
	flags.String(libFlag, "", "if passed, it'll be used as ZSCRIPT_LIB_PATH, otherwise the platform default library name is loaded")
	flags.String(configFlag, "", "if passed, it'll be used as ZSCRIPT_CONFIG, a .yml, .yaml or .toml config file")
	flags.String(logLevelFlag, "", "if passed, it'll be used as ZSCRIPT_LOG_LEVEL, otherwise 'warn' will be used")
	flags.String(failureResultFlag, "", "if passed, it'll be used as ZSCRIPT_FAILURE_RESULT ('free' or 'null')")
}

// optionsFromFlags turns the flags that were set into option modifiers. Flags left
// unset do not produce a modifier so the environment and config file still apply.
func optionsFromFlags(flags *pflag.FlagSet) ([]options.Modifier, error) {
	values := map[string]func(string) options.Modifier{
		libFlag:           options.UseLibraryPath,
		configFlag:        options.UseConfigPath,
		logLevelFlag:      options.UseLogLevel,
		failureResultFlag: options.UseFailureResult,
	}

	opts := []options.Modifier{}

	for _, name := range []string{libFlag, configFlag, logLevelFlag, failureResultFlag} {
		if !flags.Changed(name) {
			continue
		}

		value, err := flags.GetString(name)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("get string flag '%s' value", name))
		}

		opts = append(opts, values[name](value))
	}

	return opts, nil
}
