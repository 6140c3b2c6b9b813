package render

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/pkg/dsl"
)

// 颜色类名到 ANSI 前景色
var ansiColors = map[string]string{
	"carton":   "\033[33m",
	"vidrio":   "\033[32m",
	"metales":  "\033[90m",
	"plastico": "\033[34m",
	"paper":    "\033[36m",
}

const ansiReset = "\033[0m"

// Renderer 渲染 TopResult。构造后只读，可并发使用。
type Renderer struct {
	theme    Theme
	colors   lookup
	tips     lookup
	barWidth int
	ansi     bool
	showAll  bool
	logger   *slog.Logger
}

// Option Renderer 配置选项
type Option func(*Renderer)

// WithTheme 使用指定主题
func WithTheme(t Theme) Option {
	return func(r *Renderer) {
		r.theme = t
	}
}

// WithBarWidth 设置概率条宽度（字符数，默认 24）
func WithBarWidth(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.barWidth = n
		}
	}
}

// WithANSI 按颜色类名给概率条着色
func WithANSI(enabled bool) Option {
	return func(r *Renderer) {
		r.ansi = enabled
	}
}

// WithTopKOnly 只画 TopK 而不是全部标签
func WithTopKOnly() Option {
	return func(r *Renderer) {
		r.showAll = false
	}
}

// WithLogger 设置日志（教练规则求值失败时告警）
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New 创建 Renderer。
func New(opts ...Option) *Renderer {
	r := &Renderer{
		barWidth: 24,
		showAll:  true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.colors = newLookup(r.theme.Colors)
	r.tips = newLookup(r.theme.Tips)
	return r
}

// Percent 把概率四舍五入为整数百分比。
func Percent(p float64) int {
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	if p >= 1 {
		return 100
	}
	return int(math.Round(p * 100))
}

// Badge 返回形如 "VIDRIO 87%" 的徽章；结果为空时返回 ""。
func (r *Renderer) Badge(res *core.TopResult) string {
	if res == nil || res.Top1 == nil {
		return ""
	}
	// Caser 有状态，不能在 goroutine 之间共享
	upper := cases.Upper(language.Spanish)
	return fmt.Sprintf("%s %d%%", upper.String(res.Top1.Label), Percent(res.Top1.Prob))
}

// Color 返回标签的颜色类名。
func (r *Renderer) Color(label string) string {
	c, _ := r.colors.get(label)
	return c
}

// Tip 返回标签的提示，未配置时返回主题的默认提示。
func (r *Renderer) Tip(label string) string {
	if tip, ok := r.tips.get(label); ok {
		return tip
	}
	return r.theme.DefaultTip
}

// Coach 返回第一条命中规则的教练语句；没有规则命中时返回 ""。
func (r *Renderer) Coach(res *core.TopResult) (string, error) {
	if res == nil || res.Top1 == nil || len(r.theme.Coach) == 0 {
		return "", nil
	}
	eval := dsl.NewEval(res)
	for _, rule := range r.theme.Coach {
		ok, err := eval.Evaluate(rule.When)
		if err != nil {
			return "", fmt.Errorf("coach rule %q: %w", rule.When, err)
		}
		if ok {
			return expand(rule.Message, res.Top1), nil
		}
	}
	return "", nil
}

func expand(msg string, top *core.RankedItem) string {
	return strings.NewReplacer(
		"{label}", top.Label,
		"{pct}", strconv.Itoa(Percent(top.Prob)),
	).Replace(msg)
}

// Bars 返回每个标签一行的概率条。
func (r *Renderer) Bars(res *core.TopResult) []string {
	if res == nil {
		return nil
	}
	items := []core.RankedItem(res.All)
	if !r.showAll || len(items) == 0 {
		items = res.TopK
	}
	width := 0
	for _, it := range items {
		if n := len([]rune(it.Label)); n > width {
			width = n
		}
	}

	lines := make([]string, 0, len(items))
	for _, it := range items {
		pct := Percent(it.Prob)
		filled := int(math.Round(float64(pct) / 100 * float64(r.barWidth)))
		bar := strings.Repeat("█", filled) + strings.Repeat("░", r.barWidth-filled)
		class := r.Color(it.Label)
		if r.ansi {
			if code, ok := ansiColors[class]; ok {
				bar = code + bar + ansiReset
			}
		}
		pad := strings.Repeat(" ", width-len([]rune(it.Label)))
		line := fmt.Sprintf("  %s%s %3d%% %s", it.Label, pad, pct, bar)
		if class != "" && !r.ansi {
			line += " (" + class + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

// Render 写出完整的结果块。
func (r *Renderer) Render(w io.Writer, res *core.TopResult) error {
	if res == nil || res.Top1 == nil {
		_, err := fmt.Fprintln(w, "sin resultado")
		return err
	}

	var b strings.Builder
	b.WriteString(r.Badge(res))
	if res.Mode.IsDemo() {
		fmt.Fprintf(&b, "  [modo demo: %s]", res.Mode)
	}
	b.WriteByte('\n')
	for _, line := range r.Bars(res) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "latencia: %.1f ms\n", res.LatencyMs())

	if tip := r.Tip(res.Top1.Label); tip != "" {
		fmt.Fprintf(&b, "tip: %s\n", tip)
	}
	coach, err := r.Coach(res)
	if err != nil {
		r.logger.Warn("coach rule failed", "error", err)
	} else if coach != "" {
		fmt.Fprintf(&b, "coach: %s\n", coach)
	}

	_, err = io.WriteString(w, b.String())
	return err
}
