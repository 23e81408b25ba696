package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/clipai/internal/app"
	"github.com/dshills/clipai/internal/plugin"
	"github.com/dshills/clipai/internal/settings"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load the plugins and keep them in sync until interrupted",
		Long: `Load the plugins and keep running: settings changes on disk are applied,
the configured refresh schedule runs and metrics are served if an address
is configured. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, true)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}

// withStarted runs fn against a started application and shuts it down
// afterwards.
func withStarted(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.Application) error) error {
	a, err := opts.newApp(cmd, false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = a.Shutdown(context.WithoutCancel(ctx)) }()
	return fn(ctx, a)
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plugins and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStarted(cmd, opts, func(ctx context.Context, a *app.Application) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tVERSION\tSTATE\tREADINESS\tFEATURE\tMODULE")
				for _, st := range a.Manager().Status() {
					state := st.State.String()
					if st.Err != nil {
						state += ": " + st.Err.Error()
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						st.ID, st.Version, state, st.Readiness, dash(st.FeatureID), st.Module)
				}
				for _, f := range a.Manager().LoadFailures() {
					fmt.Fprintf(w, "%s\t-\tload failed: %v\t-\t-\t%s\n", dash(f.Factory), f.Err, f.Path)
				}
				return w.Flush()
			})
		},
	}
}

func newFeaturesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List registered features and their providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStarted(cmd, opts, func(ctx context.Context, a *app.Application) error {
				reg := a.Manager().Registry()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "FEATURE\tENABLED\tPROVIDERS")
				for _, id := range reg.GetRegisteredFeatures() {
					var names []string
					for _, p := range reg.GetFeatureProviders(id) {
						names = append(names, p.ID())
					}
					fmt.Fprintf(w, "%s\t%t\t%s\n", id, a.Settings().IsPluginEnabled(id), strings.Join(names, ","))
				}
				return w.Flush()
			})
		},
	}
}

func newProcessCommand(opts *rootOptions) *cobra.Command {
	var (
		featureID   string
		contentType string
		values      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "process [text...]",
		Short: "Run text through the plugin pipeline or one feature",
		Long: `Run text through every loaded plugin in order, or through a single
feature with --feature. The text is the arguments joined by spaces, or
standard input when no arguments are given.`,
		Example: `  # Whole pipeline
  pbpaste | clipai process

  # One feature with options
  clipai process --feature JsonFormatter --option minify=true '{"a": 1}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			ct, err := parseContentType(contentType)
			if err != nil {
				return err
			}

			return withStarted(cmd, opts, func(ctx context.Context, a *app.Application) error {
				var out string
				if featureID != "" {
					out, err = a.Manager().ProcessFeature(ctx, featureID, text, plugin.ProcessOptions{
						ContentType: ct,
						Values:      parseValues(values),
					})
				} else {
					out, err = a.Manager().ProcessText(ctx, text)
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&featureID, "feature", "f", "", "process with this feature only")
	cmd.Flags().StringVar(&contentType, "content-type", "text", "content type for --feature (text, code, table)")
	cmd.Flags().StringToStringVarP(&values, "option", "o", nil, "feature option as key=value (repeatable)")
	return cmd
}

func newEnableCommand(opts *rootOptions, enabled bool) *cobra.Command {
	use, short := "enable", "Enable a feature in the settings"
	if !enabled {
		use, short = "disable", "Disable a feature in the settings"
	}
	return &cobra.Command{
		Use:   use + " <feature>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, false)
			if err != nil {
				return err
			}
			if err := a.SetFeatureEnabled(args[0], enabled); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", settings.NormalizeID(args[0]), use)
			return err
		},
	}
}

func inputText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

func parseContentType(s string) (plugin.ContentType, error) {
	for _, ct := range []plugin.ContentType{plugin.ContentText, plugin.ContentCode, plugin.ContentTable, plugin.ContentImage} {
		if strings.EqualFold(s, ct.String()) {
			return ct, nil
		}
	}
	return plugin.ContentText, fmt.Errorf("unknown content type %q", s)
}

// parseValues converts option strings to bools and numbers where they
// parse as such.
func parseValues(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if i, err := strconv.Atoi(v); err == nil {
			out[k] = i
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = f
		} else if b, err := strconv.ParseBool(v); err == nil {
			out[k] = b
		} else {
			out[k] = v
		}
	}
	return out
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
