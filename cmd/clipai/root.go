package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/clipai/internal/app"
	"github.com/dshills/clipai/internal/config"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
	pluginDir  string
	noBuiltins bool
}

func newRootCommand(version, commit, date string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "clipai",
		Short: "ClipboardAI plugin runtime",
		Long: `clipai loads clipboard processing plugins from a directory, keeps their
enabled state in sync with the persisted settings and runs text through them.

Plugins are Lua scripts (.lua), manifests naming a compiled-in module
(.plugin) or Go plugins (.so).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	flags.StringVar(&opts.pluginDir, "plugin-dir", "", "override the configured plugin directory")
	flags.BoolVar(&opts.noBuiltins, "no-builtins", false, "do not load the compiled-in plugins")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newListCommand(opts),
		newProcessCommand(opts),
		newFeaturesCommand(opts),
		newEnableCommand(opts, true),
		newEnableCommand(opts, false),
	)
	return rootCmd
}

// loadConfig loads the config file and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.pluginDir != "" {
		cfg.Plugins.Dir = o.pluginDir
	}
	if o.noBuiltins {
		cfg.Plugins.Builtin = false
	}
	return cfg, cfg.Validate()
}

// newApp builds the application with logs and notifications on the
// command's stderr. Unless serve is set the background services (settings
// watcher, refresh schedule, metrics endpoint) are left off.
func (o *rootOptions) newApp(cmd *cobra.Command, serve bool) (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if !serve {
		cfg.Settings.Watch = false
		cfg.Refresh.Schedule = ""
		cfg.Metrics.Addr = ""
	}
	return app.New(cfg, app.Options{
		LogOutput:    cmd.ErrOrStderr(),
		NotifyOutput: cmd.ErrOrStderr(),
	})
}
