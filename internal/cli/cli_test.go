package cli

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rushteam/inferkit/config"
	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/feature"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadRequest(t *testing.T) {
	dir := t.TempDir()

	var f32 bytes.Buffer
	if err := binary.Write(&f32, binary.LittleEndian, []float32{0, 1, -1, 0.5}); err != nil {
		t.Fatal(err)
	}
	img := writeFile(t, dir, "photo.png", pngBytes(t, 8, 8))
	clip := writeFile(t, dir, "clip.f32", f32.Bytes())
	text := writeFile(t, dir, "clip.txt", []byte("0.1, -0.2\n0.3 0.4"))
	odd := writeFile(t, dir, "bad.f32", []byte{1, 2, 3})
	pose := writeFile(t, dir, "squat.json", []byte(`{"knee_angle": 95, "elbow_angle": 170}`))
	poseImg := writeFile(t, dir, "pose.png", pngBytes(t, 10, 10))

	tests := []struct {
		name      string
		modality  core.Modality
		path      string
		wantInput int
		wantFeats []float64
		wantErr   bool
	}{
		{name: "image", modality: core.ModalityImage, path: img, wantInput: 4 * 4 * 3},
		{name: "image not decodable", modality: core.ModalityImage, path: text, wantErr: true},
		{name: "audio f32", modality: core.ModalityAudio, path: clip, wantInput: feature.AudioFrames * feature.AudioBins},
		{name: "audio text", modality: core.ModalityAudio, path: text, wantInput: feature.AudioFrames * feature.AudioBins},
		{name: "audio truncated f32", modality: core.ModalityAudio, path: odd, wantErr: true},
		{name: "pose features", modality: core.ModalityPose, path: pose, wantFeats: []float64{95, 170, 0.5}},
		{name: "pose image", modality: core.ModalityPose, path: poseImg, wantInput: feature.PoseGridPoints},
		{name: "missing file", modality: core.ModalityPose, path: filepath.Join(dir, "nope.json"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := readRequest(tt.modality, tt.path, 4)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if req.Filename != filepath.Base(tt.path) {
				t.Errorf("Filename = %q", req.Filename)
			}
			if len(req.Input) != tt.wantInput {
				t.Errorf("len(Input) = %d, want %d", len(req.Input), tt.wantInput)
			}
			if tt.wantFeats != nil {
				if len(req.Features) != len(tt.wantFeats) {
					t.Fatalf("Features = %v, want %v", req.Features, tt.wantFeats)
				}
				for i := range tt.wantFeats {
					if req.Features[i] != tt.wantFeats[i] {
						t.Errorf("Features[%d] = %v, want %v", i, req.Features[i], tt.wantFeats[i])
					}
				}
			}
		})
	}
}

func TestAudioRequestCarriesSpectralFeatures(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tone.txt", []byte("1 1 1 1"))
	req, err := readRequest(core.ModalityAudio, path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Features) != feature.AudioFrames {
		t.Fatalf("len(Features) = %d, want %d", len(req.Features), feature.AudioFrames)
	}
	// 最近邻重采样把 4 个满幅采样铺满整个输入
	for i, got := range req.Features {
		if got != 1 {
			t.Fatalf("frame %d energy = %v, want 1", i, got)
		}
	}
}

func TestParseFloatList(t *testing.T) {
	got, err := parseFloatList(" 1,2\t3\n\n-4.5 ")
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{1, 2, 3, -4.5}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if _, err := parseFloatList("1 two 3"); err == nil {
		t.Error("expected parse error")
	}
}

func TestZeroRequest(t *testing.T) {
	tests := []struct {
		modality core.Modality
		size     int
		want     int
	}{
		{core.ModalityImage, 8, 8 * 8 * 3},
		{core.ModalityImage, 0, 224 * 224 * 3},
		{core.ModalityAudio, 0, feature.AudioFrames * feature.AudioBins},
		{core.ModalityPose, 0, feature.PoseGridPoints},
	}
	for _, tt := range tests {
		if got := len(zeroRequest(tt.modality, tt.size).Input); got != tt.want {
			t.Errorf("%s/%d: len = %d, want %d", tt.modality, tt.size, got, tt.want)
		}
	}
}

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "photos/a.jpg", nil)
	writeFile(t, dir, "photos/nested/b.jpg", nil)
	writeFile(t, dir, "photos/nested/c.png", nil)
	writeFile(t, dir, "poses/squat.json", nil)

	files, err := expandPatterns([]string{
		filepath.Join(dir, "photos/**/*.jpg"),
		"image=" + filepath.Join(dir, "photos/**/*.{jpg,png}"),
		"pose=" + filepath.Join(dir, "poses/*.json"),
	}, core.ModalityImage)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(files[core.ModalityImage]); got != 3 {
		t.Errorf("image files = %v", files[core.ModalityImage])
	}
	if got := files[core.ModalityPose]; len(got) != 1 || !strings.HasSuffix(got[0], "squat.json") {
		t.Errorf("pose files = %v", got)
	}
	if _, ok := files[core.ModalityAudio]; ok {
		t.Error("audio should have no files")
	}

	if _, err := expandPatterns([]string{"photos/[*.jpg"}, core.ModalityImage); err == nil {
		t.Error("expected invalid pattern error")
	}
}

func TestSplitPattern(t *testing.T) {
	tests := []struct {
		arg         string
		wantM       core.Modality
		wantPattern string
	}{
		{"clips/*.f32", core.ModalityImage, "clips/*.f32"},
		{"audio=clips/*.f32", core.ModalityAudio, "clips/*.f32"},
		{"POSE=p/*.json", core.ModalityPose, "p/*.json"},
		{"a=b/*.jpg", core.ModalityImage, "a=b/*.jpg"},
	}
	for _, tt := range tests {
		m, pattern, err := splitPattern(tt.arg, core.ModalityImage)
		if err != nil {
			t.Fatalf("%s: %v", tt.arg, err)
		}
		if m != tt.wantM || pattern != tt.wantPattern {
			t.Errorf("%s: got (%s, %s), want (%s, %s)", tt.arg, m, pattern, tt.wantM, tt.wantPattern)
		}
	}
}

func TestSummarize(t *testing.T) {
	var lat []time.Duration
	for i := 20; i >= 1; i-- {
		lat = append(lat, time.Duration(i)*time.Millisecond)
	}
	s := summarize(lat)
	if s.p50 != 10*time.Millisecond {
		t.Errorf("p50 = %v", s.p50)
	}
	if s.p95 != 19*time.Millisecond {
		t.Errorf("p95 = %v", s.p95)
	}
	if s.mean != 10500*time.Microsecond {
		t.Errorf("mean = %v", s.mean)
	}
	if lat[0] != 20*time.Millisecond {
		t.Error("summarize must not reorder its input")
	}
	if (summarize(nil) != latencyStats{}) {
		t.Error("empty input should give zero stats")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, config.LoggingConfig{Level: "WARN", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("unexpected log output: %s", out)
	}
	if !l.Enabled(t.Context(), slog.LevelWarn) {
		t.Error("warn should be enabled")
	}

	if _, err := newLogger(&buf, config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("expected invalid level error")
	}
}
