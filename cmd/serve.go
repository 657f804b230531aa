package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meyer/rwb/internal/config"
	"github.com/meyer/rwb/internal/environ"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/services"
)

var serveCmd = &cobra.Command{
	Use:     "serve [port]",
	Aliases: []string{"s"},
	Short:   "Start the live reloading development server",
	Long: `Bundle the component named by rwb.main and serve it with live reload.

The server writes a minimal HTML shell to a temporary directory, serves the
bundle from memory and reloads connected browsers after every rebuild.

Examples:
  rwb serve                 # Serve on port 3000
  rwb serve 8080            # Serve on port 8080
  rwb serve --port 8080     # Same as above
  RWB_PORT=8080 rwb serve   # Same, from the environment`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to serve on")
	serveCmd.Flags().String("host", config.DefaultHost, "Host to bind to (default all interfaces)")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && !cmd.Flags().Changed("port") {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid port %q", args[0]))
		}
		viper.Set("server.port", port)
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &environ.Terminal{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
	svc := services.NewServeService(cfg, env, logger, cmd.OutOrStdout())
	_, err = svc.Serve(ctx, services.ServeOptions{})
	return err
}
