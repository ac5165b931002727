package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pitchlog/internal/config"
	"pitchlog/internal/kv"
	"pitchlog/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show today's stats live, refreshing as touches are logged from any terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Storage.Backend == config.BackendSQLite {
			w, err := store.Watch(ctx, env.Dir, kv.DBFile, a.st.Bus(), logger, 0)
			if err != nil {
				return err
			}
			defer w.Close()
		}

		v, err := a.mgr.Watch(ctx)
		if err != nil {
			return err
		}
		defer v.Close()
		if err := v.Wait(ctx); err != nil {
			return err
		}
		logger.Debug("watching session", zap.String("session", v.SessionID))

		draw := func() {
			s := v.Session()
			fmt.Print("\033[H\033[2J")
			fmt.Printf("%s  %s %s   (Ctrl-C to quit)\n\n", s.Date, s.Time, s.PlayerName)
			printStats(v.Stats())
			if r := v.Reflection(); r.WhatLearned != "" {
				fmt.Printf("\nLearned: %s\n", r.WhatLearned)
			}
		}

		draw()
		for {
			select {
			case <-ctx.Done():
				fmt.Println()
				return nil
			case _, ok := <-v.Updates():
				if !ok {
					return nil
				}
				draw()
			}
		}
	},
}
