package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/InfiniteCod3/chatplugins/internal/model"
)

var (
	userColor      = color.New(color.FgCyan, color.Bold)
	assistantColor = color.New(color.FgGreen, color.Bold)
	dimColor       = color.New(color.Faint)
)

func roleLabel(r model.Role) string {
	if r == model.RoleAssistant {
		return assistantColor.Sprint(r)
	}
	return userColor.Sprint(r)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "inspect or clear stored AI conversations",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "list channels with stored conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		for _, id := range a.Store.Channels() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d entries\n", id, len(a.Store.Get(id)))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <channel-id>",
	Short: "print the stored conversation of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		for _, e := range a.Assistant.History(args[0]) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n",
				dimColor.Sprint("["+e.Timestamp.Format("2006-01-02 15:04:05")+"]"), roleLabel(e.Role), e.Content)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <channel-id>",
	Short: "forget the stored conversation of a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		return a.Assistant.Reset(ctx, args[0])
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
}
