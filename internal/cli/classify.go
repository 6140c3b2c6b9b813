package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rushteam/inferkit/core"
)

var (
	classifyModality string
	classifyJSON     bool
	classifySession  string
)

var classifyCmd = &cobra.Command{
	Use:   "classify FILE...",
	Short: "Classify files with one modality",
	Long: `Decode each file, run it through the modality's score sources and render
the ranked result.

Examples:
  inferkit classify -m image photo.jpg
  inferkit classify -m audio --json clip.f32
  inferkit classify -m pose --session gym squat.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyModality, "modality", "m", string(core.ModalityImage), "image, audio or pose")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print results as JSON")
	classifyCmd.Flags().StringVar(&classifySession, "session", "", "append results to this session's history")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, err := parseModality(classifyModality)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	adapter, err := rt.Adapter(m)
	if err != nil {
		return err
	}
	renderer := rt.Renderer(m)
	reps := rt.Reps[m]
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)

	for _, path := range args {
		req, err := readRequest(m, path, rt.Loaded[m].InputSize)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		ictx := core.NewInferenceContext(classifySession, m)
		ictx.Source = "file"
		ictx.Filename = filepath.Base(path)

		res, err := adapter.Infer(ctx, ictx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if classifySession != "" {
			if err := rt.History.Append(ctx, classifySession, res); err != nil {
				logger.Warn("failed to save result", "session", classifySession, "error", err)
			}
		}

		if classifyJSON {
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%s\n", path)
		if err := renderer.Render(out, res); err != nil {
			return err
		}
		if reps != nil {
			fmt.Fprintf(out, "repeticiones: %d\n", reps.Observe(res))
		}
		fmt.Fprintln(out)
	}
	return nil
}
