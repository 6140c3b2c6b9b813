// Package render 把一次推理结果渲染为终端文本：徽章、概率条、延迟、提示与教练语句。
package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rushteam/inferkit/core"
)

// DefaultTip 没有为 top1 标签配置提示时使用的通用提示。
const DefaultTip = "Limpia y seca los residuos antes de separarlos."

// DefaultPoseCoach 姿态模态的默认教练语句。
const DefaultPoseCoach = "Ejercicio dominante: {label} ({pct}%)."

// CoachRule 是一条教练规则：When 为 CEL 布尔表达式（空串恒真），
// Message 支持 {label} 与 {pct} 占位符。按顺序取第一条命中的规则。
type CoachRule struct {
	When    string `yaml:"when" json:"when"`
	Message string `yaml:"message" json:"message"`
}

// Theme 是某个模态的展示配置。
type Theme struct {
	Colors     map[string]string // 标签 → 颜色类名（例如 Vidrio → vidrio）
	Tips       map[string]string // 标签 → 提示
	DefaultTip string
	Coach      []CoachRule
}

// DefaultTheme 返回模态的内置主题。
func DefaultTheme(m core.Modality) Theme {
	switch m {
	case core.ModalityImage:
		return Theme{
			Colors: map[string]string{
				"Carton":   "carton",
				"Vidrio":   "vidrio",
				"Metal":    "metales",
				"plastico": "plastico",
				"Papel":    "paper",
				"Basura":   "metales",
			},
			Tips: map[string]string{
				"Carton":   "Cartón: dóblalo para ahorrar espacio y evita que esté lleno de grasa.",
				"Vidrio":   "Vidrio: enjuaga frascos y botellas, y evita romperlos para mayor seguridad.",
				"Metal":    "Metal: latas limpias y, si puedes, aplastadas para ocupar menos.",
				"plastico": "Plástico: enjuaga botellas y separa etiquetas o tapas si tu ciudad lo pide.",
				"Papel":    "Papel: evita que esté mojado o sucio; retira grapas y clips si es fácil.",
				"Basura":   "Basura: cosas que no se pueden reciclar; intenta reducirla al máximo.",
			},
			DefaultTip: DefaultTip,
		}
	case core.ModalityPose:
		return Theme{Coach: []CoachRule{{Message: DefaultPoseCoach}}}
	}
	return Theme{}
}

// Merge 用 other 中的非空字段覆盖 t，返回新主题。
func (t Theme) Merge(other Theme) Theme {
	out := Theme{
		Colors:     mergeMap(t.Colors, other.Colors),
		Tips:       mergeMap(t.Tips, other.Tips),
		DefaultTip: t.DefaultTip,
		Coach:      t.Coach,
	}
	if other.DefaultTip != "" {
		out.DefaultTip = other.DefaultTip
	}
	if len(other.Coach) > 0 {
		out.Coach = other.Coach
	}
	return out
}

func mergeMap(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// foldKey 去掉重音并转小写，让 "Cartón" 与 "carton" 命中同一条配置。
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// lookup 先精确匹配，再按折叠后的键匹配。
type lookup struct {
	exact  map[string]string
	folded map[string]string
}

func newLookup(m map[string]string) lookup {
	l := lookup{exact: m, folded: make(map[string]string, len(m))}
	for k, v := range m {
		l.folded[foldKey(k)] = v
	}
	return l
}

func (l lookup) get(label string) (string, bool) {
	if v, ok := l.exact[label]; ok {
		return v, true
	}
	v, ok := l.folded[foldKey(label)]
	return v, ok
}
