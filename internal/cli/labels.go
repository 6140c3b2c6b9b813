package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/inferkit/core"
)

var labelsModality string

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Show the resolved label set of each modality",
	Args:  cobra.NoArgs,
	RunE:  runLabels,
}

func init() {
	labelsCmd.Flags().StringVarP(&labelsModality, "modality", "m", "", "only this modality")
	rootCmd.AddCommand(labelsCmd)
}

func runLabels(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var only core.Modality
	if labelsModality != "" {
		m, err := parseModality(labelsModality)
		if err != nil {
			return err
		}
		only = m
	}
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	out := cmd.OutOrStdout()
	for _, m := range rt.Config.ModalityNames() {
		if only != "" && m != only {
			continue
		}
		l := rt.Loaded[m]
		model := "none"
		if !l.Demo() {
			model = l.Model.Name()
		}
		fmt.Fprintf(out, "%s (source: %s, model: %s, demo: %v)\n", m, l.LabelSource, model, l.Demo())
		if l.Err != nil {
			fmt.Fprintf(out, "  reason: %v\n", l.Err)
		}
		for i, label := range l.Labels {
			fmt.Fprintf(out, "  %2d. %s\n", i+1, label)
		}
	}
	return nil
}
