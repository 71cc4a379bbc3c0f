package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devgraph/devgraph/internal/config"
)

var (
	flagConfigPath string
	flagVerbose    bool
	flagQuietLog   bool
)

var rootCmd = &cobra.Command{
	Use:           "devgraphd",
	Short:         "Module graph, HMR propagator, and dependency optimizer dev server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		setupLogging()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "./devgraph.toml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagQuietLog, "quiet-log", false, "redirect logs to a file instead of stdout (set automatically by --ui)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.SetEnvPrefix("DEVGRAPH")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newOptimizeCmd())
	rootCmd.AddCommand(newGraphCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func setupLogging() {
	level := slog.LevelInfo
	if flagVerbose || viper.GetBool("verbose") {
		level = slog.LevelDebug
	}

	out := os.Stdout
	if flagQuietLog {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			out = f
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "devgraphd", "devgraphd.log")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "devgraphd", "devgraphd.log")
	}
	return "devgraphd.log"
}

func loadConfig() (*config.Config, error) {
	path := flagConfigPath
	if v := viper.GetString("config"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil && path == "./devgraph.toml" {
		cfg, err = config.Load("./devgraph.example.toml")
	}
	return cfg, err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
