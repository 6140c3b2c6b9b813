package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historySession string
	historyJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the stored results of a session",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historySession, "session", "", "session id")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print results as JSON")
	_ = historyCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	results, err := rt.History.List(ctx, historySession)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if historyJSON {
		return json.NewEncoder(out).Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintf(out, "session %s has no results\n", historySession)
		return nil
	}
	for i, res := range results {
		fmt.Fprintf(out, "%3d. %-6s %-24s %-9s %.1f ms  %s\n",
			i+1, res.Modality, rt.Renderer(res.Modality).Badge(res), res.Mode, res.LatencyMs(), res.RequestID)
	}
	return nil
}
