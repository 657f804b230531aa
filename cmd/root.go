// Package cmd provides the rwb command-line interface.
//
// Configuration is resolved once per invocation with the following
// precedence (highest first):
//
//  1. Command-line flags and positional arguments (--port, [port], ...)
//  2. Environment variables (RWB_PORT, RWB_PUBLIC_URL, NODE_ENV, ...)
//  3. The configuration file (--config, RWB_CONFIG_FILE, or .rwb.yml)
//  4. Built-in defaults
//
// Environment Variables:
//
//	RWB_PORT                 dev server port (default 3000)
//	RWB_HOST                 dev server bind host
//	RWB_PUBLIC_URL           URL the hot client connects back to
//	RWB_SKIP_SOURCEMAPS      disable inline source maps
//	RWB_DISABLE_CACHEBUSTER  drop content hashes from static output names
//	RWB_PUBLIC_PATH          public path prefix for static assets
//	RWB_HOME                 tool root whose node_modules back up the project's
//	RWB_RUNTIME              JavaScript runtime for the static generator
//	RWB_CONFIG_FILE          path to a configuration file
//	NODE_ENV                 build environment (production enables minification)
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meyer/rwb/internal/config"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rwb",
	Short: "Serve and statically render a React component",
	Long: `rwb bundles the React component named in package.json and either serves it
through a live reloading development server or renders it to static files.

Quick Start:
  rwb serve                 Start the development server on port 3000
  rwb static                Render to ./dist
  rwb config show           Show the resolved configuration
  rwb config bundler        Dump the generated bundler configuration

The project is described by the rwb section of package.json:

  "rwb": {
    "main": "./src/App.js",
    "dom_node": "div#app",
    "static_generator": "./render-static-page.js"
  }`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .rwb.yml, can also use RWB_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig selects the configuration file and enables RWB_ environment
// overrides. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("RWB_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rwb")
	}

	// RWB_<SECTION>_<KEY>, e.g. RWB_STATIC_DESTINATION. The historical names
	// (RWB_PORT, NODE_ENV, ...) are bound explicitly by config.BindEnv.
	viper.SetEnvPrefix("RWB")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the configuration and the logger every command uses.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "cannot load configuration")
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "invalid --log-level")
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    "text",
		Output:    cmd.ErrOrStderr(),
		Component: "rwb",
	})
	return cfg, logger, nil
}

// printError writes err to w, with suggestions where rwb knows some.
func printError(w io.Writer, err error) {
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		fmt.Fprint(w, enhanced.Error())
		if enhanced.OriginalError != nil {
			fmt.Fprintln(w, "Error:", enhanced.OriginalError.Error())
		}
		return
	}

	fmt.Fprintln(w, errors.FormatError(err))

	var e *errors.Error
	if errors.As(err, &e) {
		if suggestions := errors.ManifestSuggestions(err, e.FilePath); len(suggestions) > 0 {
			fmt.Fprint(w, errors.FormatSuggestions("Hints", suggestions))
		}
	}
}
