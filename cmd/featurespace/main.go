// Package main provides the featurespace CLI entry point.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cmunell/featurespace"
)

// Version is set at build time via ldflags
var Version = "dev"

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	envFile    string
	logLevel   string
	human      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		renderError(os.Stderr, err)
		os.Exit(ExitError)
	}
}

// renderError writes err as one "**err**:" line per message line.
func renderError(w io.Writer, err error) {
	for _, line := range strings.Split(strings.TrimRight(err.Error(), "\n"), "\n") {
		fmt.Fprintf(w, "**err**: %s\n", line)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "featurespace",
		Short: "Compose feature spaces and train classifiers that grow them",
		Long: `featurespace builds sparse feature vocabularies from a YAML config,
trains logistic models whose rules induce new features while training,
and stores the models on local disk, MinIO or S3.

Commands output JSON by default. Use --human for readable output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.loadEnv()
		},
	}
	root.Version = Version
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "featurespace.yaml", "Path to the YAML config")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Load storage credentials from this .env file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&g.human, "human", false, "Use human-readable output instead of JSON")

	root.AddCommand(newTrainCmd(g), newPredictCmd(g), newInspectCmd(g), newListCmd(g))
	return root
}

// loadEnv loads --env-file, or ./.env when present.
func (g *globals) loadEnv() error {
	if g.envFile == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(g.envFile); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

func (g *globals) logger(cmd *cobra.Command) (*featurespace.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", g.logLevel)
	}
	return featurespace.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

func (g *globals) pipeline(cmd *cobra.Command) (*featurespace.Pipeline, error) {
	logger, err := g.logger(cmd)
	if err != nil {
		return nil, err
	}
	return featurespace.Open(cmd.Context(), g.configPath, featurespace.WithLogger(logger))
}
