package cmd

import (
	"fmt"
	"os"

	"pitchlog/internal/config"
	"pitchlog/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	logger  = zap.NewNop()
	env     config.Env
	cfg     = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "pitchlog",
	Short: "Football session journal: log touches, reflect, share a report",
	Long: `pitchlog keeps one session per day for a player. Log each touch as it
happens, fill in the profile and the post-session reflection, and export
a report to paste or share.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if env, err = config.ParseEnv(); err != nil {
			return err
		}
		if cfg, err = config.Load(env); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.Log.Level, verbose); err != nil {
			return err
		}
		logger.Debug("config loaded",
			zap.String("dir", env.Dir),
			zap.String("backend", cfg.Storage.Backend),
			zap.Duration("timeout", cfg.Storage.Timeout))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
