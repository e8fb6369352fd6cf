package commands

import (
	"github.com/urfave/cli/v3"
)

// NewRoot builds the kash command tree. Before and After hooks are left to
// the caller so documentation generation can build the tree without opening
// a workspace.
func NewRoot(flags *Flags) *cli.Command {
	root := &cli.Command{
		Name:      "kash",
		Usage:     "Run cached actions over a workspace of documents",
		UsageText: "kash [global options] command [command options]",
		Description: `kash keeps documents, resources and their derived outputs in a plain
directory of files with YAML frontmatter. Actions such as strip_html or
summarize turn items into new items; outputs are cached by operation so
repeated runs are free.

Run 'kash actions' to see what is available and 'kash run <action>' to run one
on the current selection.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("KASH_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (an empty value logs to stderr)",
				Sources:     cli.EnvVars("KASH_LOG_FILE"),
				Value:       DefaultLogFile(),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("KASH_CONFIG"),
				Value:       DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "workspace",
				Aliases:     []string{"w"},
				Usage:       "workspace directory (overrides the config)",
				Sources:     cli.EnvVars("KASH_WORKSPACE"),
				Destination: &flags.Workspace,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "write machine-readable JSON to stdout",
				Destination: &flags.JSON,
			},
		},
	}

	root = NewRunCmd(flags).Register(root)
	root = NewActionsCmd(flags).Register(root)
	root = NewPreconditionsCmd(flags).Register(root)
	root = NewLsCmd(flags).Register(root)
	root = NewShowCmd(flags).Register(root)
	root = NewImportCmd(flags).Register(root)
	root = NewSelectCmd(flags).Register(root)
	root = NewParamsCmd(flags).Register(root)
	root = NewWorkspaceCmd(flags).Register(root)
	root = NewDoctorCmd(flags).Register(root)
	root = NewInitCmd(flags).Register(root)
	root = NewConfigValidateCmd(flags).Register(root)

	return root
}
