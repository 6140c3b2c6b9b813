package feature

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// 这些辅助函数只负责把已解码的缓冲区变成数值向量，不做任何采集。

const (
	// AudioFrames 与 AudioBins 是音频模型输入的形状 [1, 646, 64, 1]
	AudioFrames = 646
	AudioBins   = 64

	// PoseGridPoints 是姿态灰度网格采样点数（与 17 个关键点 × 3 对齐）
	PoseGridPoints = 51
)

// DecodeImage 解码 jpeg / png / webp 图像。
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// ImageInput 把图像双线性缩放到 size×size，像素值除以 255，按 HWC（RGB）展平。
func ImageInput(img image.Image, size int) []float64 {
	if img == nil || size <= 0 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make([]float64, 0, size*size*3)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := dst.PixOffset(x, y)
			out = append(out,
				float64(dst.Pix[i])/255,
				float64(dst.Pix[i+1])/255,
				float64(dst.Pix[i+2])/255,
			)
		}
	}
	return out
}

// AudioInput 把单声道采样（[-1,1]）按最近邻重采样到 frames×bins 个值，并映射到 [0,1]。
// 超出采样范围的位置记 0.5（静音）。
func AudioInput(samples []float32, frames, bins int) []float64 {
	if frames <= 0 {
		frames = AudioFrames
	}
	if bins <= 0 {
		bins = AudioBins
	}
	n := frames * bins
	out := make([]float64, n)
	step := float64(len(samples)) / float64(n)
	for i := range out {
		idx := int(math.Floor(float64(i) * step))
		var v float64
		if idx < len(samples) {
			v = float64(samples[idx])
		}
		out[i] = (v + 1) / 2
	}
	return out
}

// SpectralFeatures 把音频输入压缩为每帧的平均能量，作为启发式的原始信号。
// 输入应为 AudioInput 的输出（frames×bins，行优先）。
func SpectralFeatures(input []float64, bins int) []float64 {
	if bins <= 0 {
		bins = AudioBins
	}
	frames := len(input) / bins
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		out[f] = mean(input[f*bins : (f+1)*bins])
	}
	return out
}

// PoseGrid 在图像上取 points 个灰度采样点（0..1），近似一条姿态特征向量。
// 第 i 个点位于 y = floor(i/points*H)，x = (i*7) mod W。
// 这不是真正的关键点检测，只是给姿态模型一个形状正确的输入。
func PoseGrid(img image.Image, points int) []float64 {
	if points <= 0 {
		points = PoseGridPoints
	}
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	out := make([]float64, points)
	for i := range out {
		y := int(math.Floor(float64(i) / float64(points) * float64(h)))
		x := (i * 7) % w
		r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
		// RGBA 返回 16 位分量
		out[i] = (float64(r>>8) + float64(g>>8) + float64(bl>>8)) / (3 * 255)
	}
	return out
}
