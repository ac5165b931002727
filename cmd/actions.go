package cmd

import (
	"errors"
	"fmt"
	"strings"

	"pitchlog/internal/actions"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.AddCommand(actionsListCmd)
	actionsCmd.AddCommand(actionsAddCmd)
	actionsCmd.AddCommand(actionsRemoveCmd)
	actionsCmd.AddCommand(actionsResetCmd)
	actionsCmd.AddCommand(actionsReorderCmd)
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Manage the actions offered for logging touches",
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the action vocabulary in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.settings.Load(cmd.Context())
		if err != nil {
			fmt.Printf("Warning: %v (showing defaults)\n", err)
		}
		for i, name := range list {
			fmt.Printf("%2d. %s\n", i+1, name)
		}
		return nil
	},
}

var actionsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an action to the vocabulary",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		name := strings.Join(args, " ")
		added, err := a.settings.Add(cmd.Context(), name)
		if err != nil {
			return err
		}
		if !added {
			fmt.Printf("%q is blank or already listed\n", name)
			return nil
		}
		fmt.Printf("Added %q\n", strings.TrimSpace(name))
		return nil
	},
}

var actionsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an action from the vocabulary",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.settings.Load(cmd.Context())
		if err != nil {
			return err
		}
		name, ok := matchAction(strings.Join(args, " "), list)
		if !ok {
			return fmt.Errorf("%q is not in the action list", name)
		}
		if err := a.settings.Remove(cmd.Context(), name); err != nil {
			return err
		}
		fmt.Printf("Removed %q\n", name)
		return nil
	},
}

var actionsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default action vocabulary",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.settings.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Action list reset to defaults")
		return nil
	},
}

var actionsReorderCmd = &cobra.Command{
	Use:     "reorder <name>...",
	Short:   "Set the display order; every listed action must appear once",
	Example: `  pitchlog actions reorder Goal Pass Shot ...`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.settings.Load(cmd.Context())
		if err != nil {
			return err
		}
		order := make([]string, len(args))
		for i, arg := range args {
			order[i], _ = matchAction(arg, list)
		}
		if err := a.settings.Reorder(cmd.Context(), order); err != nil {
			if errors.Is(err, actions.ErrInvalidOrder) {
				return fmt.Errorf("%w (current: %s)", err, strings.Join(list, ", "))
			}
			return err
		}
		fmt.Println("Action order saved")
		return nil
	},
}
