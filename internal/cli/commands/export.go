package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/InfiniteCod3/chatplugins/internal/app"
	"github.com/InfiniteCod3/chatplugins/internal/export"
)

var exportCmd = &cobra.Command{
	Use:     "export <channel-id>",
	Short:   "export recent channel messages as text",
	Example: `  $ chatplugins export 81384788765712384 --count 1000 --after 2024-05-01T00:00:00Z -o may.txt`,
	Args:    cobra.ExactArgs(1),
	RunE:    runExport,
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "export the notes written about friends",
	Args:  cobra.NoArgs,
	RunE:  runNotes,
}

var (
	exportCount  int
	exportAfter  string
	exportBefore string
	exportOutput string
	notesOutput  string
)

func init() {
	exportCmd.Flags().IntVarP(&exportCount, "count", "n", export.DefaultCount, "number of recent messages to fetch")
	exportCmd.Flags().StringVar(&exportAfter, "after", "", "only messages at or after this RFC 3339 time")
	exportCmd.Flags().StringVar(&exportBefore, "before", "", "only messages before this RFC 3339 time")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output file, - for stdout")

	notesCmd.Flags().StringVarP(&notesOutput, "output", "o", "-", "output file, - for stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	after, err := parseFlagTime("after", exportAfter)
	if err != nil {
		return err
	}
	before, err := parseFlagTime("before", exportBefore)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, app.WithoutHistory())
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	res, err := a.Exporter.Export(ctx, export.Request{
		ChannelID: args[0],
		Count:     exportCount,
		After:     after,
		Before:    before,
	})
	if err != nil {
		return err
	}
	return writeResult(cmd, exportOutput, res)
}

func runNotes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, app.WithoutHistory())
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	res, err := a.Exporter.Notes(ctx)
	if err != nil {
		return err
	}
	return writeResult(cmd, notesOutput, res)
}

func writeResult(cmd *cobra.Command, path string, res *export.Result) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(out, res.Text); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if path != "" && path != "-" {
		cmd.PrintErrf("wrote %d entries to %s\n", res.Count, path)
	}
	return nil
}

func parseFlagTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be RFC 3339: %w", name, err)
	}
	return t, nil
}
