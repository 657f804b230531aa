package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meyer/rwb/internal/environ"
	"github.com/meyer/rwb/internal/render"
	"github.com/meyer/rwb/internal/services"
)

var staticAssumeYes bool

var staticCmd = &cobra.Command{
	Use:   "static [destination]",
	Short: "Static render the React component to a directory",
	Long: `Bundle the component for production and run the project's static generator
(rwb.static_generator) to write HTML into the destination directory.

The first run offers to copy a default render-static-page.js into the project
and register it in package.json.

Examples:
  rwb static                          # Render into ./dist
  rwb static public                   # Render into ./public
  RWB_PUBLIC_PATH=/docs rwb static    # Serve assets from /docs/
  rwb static --yes                    # Scaffold without prompting`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatic,
}

func init() {
	rootCmd.AddCommand(staticCmd)

	staticCmd.Flags().BoolVarP(&staticAssumeYes, "yes", "y", false, "Answer yes to the first-run prompt")
}

func runStatic(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var opts services.StaticOptions
	if len(args) == 1 {
		opts.Destination = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &environ.Terminal{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), AssumeYes: staticAssumeYes}
	runner := &render.Runner{
		Runtime: cfg.Static.Runtime,
		Env:     env,
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
		Logger:  logger,
	}

	svc := services.NewStaticService(cfg, env, runner, logger, cmd.OutOrStdout())
	_, err = svc.Static(ctx, opts)
	return err
}
