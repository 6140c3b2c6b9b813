package core

import "fmt"

// Modality 是分类领域：图像、音频、姿态。
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityPose  Modality = "pose"
)

// Modalities 返回所有已知模态（固定顺序）。
func Modalities() []Modality {
	return []Modality{ModalityImage, ModalityAudio, ModalityPose}
}

func (m Modality) Valid() bool {
	switch m {
	case ModalityImage, ModalityAudio, ModalityPose:
		return true
	}
	return false
}

func (m Modality) String() string { return string(m) }

// ParseModality 解析模态名称，未知名称返回 INVALID_INPUT。
func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	if !m.Valid() {
		return "", NewDomainError(ModuleConfig, ErrorCodeInvalidInput,
			fmt.Sprintf("unknown modality %q (supported: image, audio, pose)", s))
	}
	return m, nil
}

// 元数据不可读时使用的默认标签集（文档化的字面量，不从模型推导）。
var defaultLabels = map[Modality][]string{
	ModalityImage: {"Carton", "Vidrio", "Metal", "plastico", "Papel", "Basura"},
	ModalityAudio: {"reggaetón", "rap", "salsa", "electrónica"},
	ModalityPose:  {"sentadilla", "flexión", "plancha", "dominada", "zancada", "burpee"},
}

// DefaultLabels 返回模态的默认标签集副本；未知模态返回 nil。
func DefaultLabels(m Modality) []string {
	labels, ok := defaultLabels[m]
	if !ok {
		return nil
	}
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}
