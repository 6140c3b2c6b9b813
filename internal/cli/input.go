package cli

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/feature"
	"github.com/rushteam/inferkit/pipeline"
)

// readRequest 把磁盘上的文件解码为推理请求。
//   - image：jpeg / png / webp，缩放到 imageSize
//   - audio：.f32 小端 float32 PCM，或文本形式的浮点数列表
//   - pose：图像（灰度网格采样）或 .json 关节特征
func readRequest(m core.Modality, path string, imageSize int) (*pipeline.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	req := &pipeline.Request{Filename: filepath.Base(path)}
	ext := strings.ToLower(filepath.Ext(path))

	switch m {
	case core.ModalityImage:
		img, _, err := feature.DecodeImage(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if imageSize <= 0 {
			imageSize = (&core.DefaultInferenceConfig{}).DefaultImageSize()
		}
		req.Input = feature.ImageInput(img, imageSize)

	case core.ModalityAudio:
		var samples []float32
		if ext == ".f32" {
			samples, err = decodeF32(data)
		} else {
			samples, err = parseFloatList(string(data))
		}
		if err != nil {
			return nil, err
		}
		req.Input = feature.AudioInput(samples, feature.AudioFrames, feature.AudioBins)
		req.Features = feature.SpectralFeatures(req.Input, feature.AudioBins)

	case core.ModalityPose:
		if ext == ".json" {
			p := feature.DefaultPoseFeatures()
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, fmt.Errorf("decode pose features: %w", err)
			}
			req.Features = p.Vector()
			return req, nil
		}
		img, _, err := feature.DecodeImage(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Input = feature.PoseGrid(img, feature.PoseGridPoints)

	default:
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
			fmt.Sprintf("unknown modality %q", m))
	}
	return req, nil
}

// zeroRequest 返回与模态输入形状一致的全零请求（bench 使用）。
func zeroRequest(m core.Modality, imageSize int) *pipeline.Request {
	switch m {
	case core.ModalityImage:
		if imageSize <= 0 {
			imageSize = (&core.DefaultInferenceConfig{}).DefaultImageSize()
		}
		return &pipeline.Request{Input: make([]float64, imageSize*imageSize*3)}
	case core.ModalityAudio:
		return &pipeline.Request{Input: make([]float64, feature.AudioFrames*feature.AudioBins)}
	default:
		return &pipeline.Request{Input: make([]float64, feature.PoseGridPoints)}
	}
}

func decodeF32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("f32 audio: %d bytes is not a multiple of 4", len(data))
	}
	samples := make([]float32, len(data)/4)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("f32 audio: %w", err)
	}
	return samples, nil
}

// parseFloatList 解析以空白或逗号分隔的浮点数。
func parseFloatList(s string) ([]float32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
	})
	out := make([]float32, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out = append(out, float32(v))
	}
	return out, nil
}
