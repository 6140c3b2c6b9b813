package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/inferkit/config/builders"
	"github.com/rushteam/inferkit/core"
)

var (
	batchModality string
	batchSession  string
)

var batchCmd = &cobra.Command{
	Use:   "batch PATTERN...",
	Short: "Classify every file matching glob patterns",
	Long: `Expand each pattern with ** support and classify the matches.
A pattern may be prefixed with a modality ("audio=clips/**/*.f32"); unprefixed
patterns use --modality. Modalities run concurrently, files of one modality
run in order.

Examples:
  inferkit batch 'photos/**/*.jpg'
  inferkit batch 'image=photos/**/*.{jpg,png}' 'pose=poses/*.json'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchModality, "modality", "m", string(core.ModalityImage), "modality for unprefixed patterns")
	batchCmd.Flags().StringVar(&batchSession, "session", "", "append results to this session's history")
	rootCmd.AddCommand(batchCmd)
}

// batchSummary 统计一个模态的批处理结果。
type batchSummary struct {
	Files  int
	Failed int
	Demo   int
	Top1   map[string]int
}

// splitPattern 拆出 "modality=pattern" 前缀；没有前缀时使用 def。
func splitPattern(arg string, def core.Modality) (core.Modality, string, error) {
	if name, pattern, ok := strings.Cut(arg, "="); ok {
		if m, err := parseModality(name); err == nil {
			return m, pattern, nil
		}
	}
	if !doublestar.ValidatePattern(filepath.ToSlash(arg)) {
		return "", "", fmt.Errorf("invalid pattern %q", arg)
	}
	return def, arg, nil
}

// expandPatterns 按模态分组展开所有模式，去重并排序。
func expandPatterns(args []string, def core.Modality) (map[core.Modality][]string, error) {
	seen := make(map[string]bool)
	files := make(map[core.Modality][]string)
	for _, arg := range args {
		m, pattern, err := splitPattern(arg, def)
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, path := range matches {
			key := string(m) + "\x00" + path
			if seen[key] {
				continue
			}
			seen[key] = true
			files[m] = append(files[m], path)
		}
	}
	for m := range files {
		sort.Strings(files[m])
	}
	return files, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	def, err := parseModality(batchModality)
	if err != nil {
		return err
	}
	files, err := expandPatterns(args, def)
	if err != nil {
		return err
	}
	total := 0
	for _, paths := range files {
		total += len(paths)
	}
	out := cmd.OutOrStdout()
	if total == 0 {
		fmt.Fprintln(out, "no files matched")
		return nil
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("classifying"),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
	)

	var mu sync.Mutex
	summaries := make(map[core.Modality]*batchSummary)
	eg, ctx := errgroup.WithContext(ctx)
	for m, paths := range files {
		eg.Go(func() error {
			s, err := classifyAll(ctx, rt, m, paths, bar)
			if err != nil {
				return err
			}
			mu.Lock()
			summaries[m] = s
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	printSummaries(out, summaries)
	return nil
}

// classifyAll 顺序处理一个模态的文件；单个文件失败只计数，不中断。
func classifyAll(ctx context.Context, rt *builders.Runtime, m core.Modality, paths []string, bar *progressbar.ProgressBar) (*batchSummary, error) {
	adapter, err := rt.Adapter(m)
	if err != nil {
		return nil, err
	}
	size := rt.Loaded[m].InputSize
	s := &batchSummary{Top1: make(map[string]int)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.Files++
		_ = bar.Add(1)

		req, err := readRequest(m, path, size)
		if err != nil {
			logger.Warn("skip file", "modality", string(m), "path", path, "error", err)
			s.Failed++
			continue
		}
		ictx := core.NewInferenceContext(batchSession, m)
		ictx.Source = "file"
		ictx.Filename = filepath.Base(path)
		res, err := adapter.Infer(ctx, ictx, req)
		if err != nil {
			logger.Warn("inference failed", "modality", string(m), "path", path, "error", err)
			s.Failed++
			continue
		}
		if res.Mode.IsDemo() {
			s.Demo++
		}
		if res.Top1 != nil {
			s.Top1[res.Top1.Label]++
		}
		if batchSession != "" {
			if err := rt.History.Append(ctx, batchSession, res); err != nil {
				logger.Warn("failed to save result", "session", batchSession, "error", err)
			}
		}
	}
	return s, nil
}

func printSummaries(w io.Writer, summaries map[core.Modality]*batchSummary) {
	for _, m := range core.Modalities() {
		s, ok := summaries[m]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s: %d files, %d failed, %d demo\n", m, s.Files, s.Failed, s.Demo)
		labels := make([]string, 0, len(s.Top1))
		for label := range s.Top1 {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if s.Top1[labels[i]] != s.Top1[labels[j]] {
				return s.Top1[labels[i]] > s.Top1[labels[j]]
			}
			return labels[i] < labels[j]
		})
		for _, label := range labels {
			fmt.Fprintf(w, "  %-14s %d\n", label, s.Top1[label])
		}
	}
}
