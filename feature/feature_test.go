package feature

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/feast"
	"github.com/rushteam/inferkit/pipeline"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// near 允许一个 8 位量化步长的误差（缩放插值）
func near(a, b float64) bool { return math.Abs(a-b) <= 1.0/255 }

func TestAudioReducer(t *testing.T) {
	tests := []struct {
		name   string
		window int
		raw    []float64
		want   []float64
	}{
		{
			name: "twenty values",
			raw:  []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3},
			want: []float64{1, 2, 3, 2},
		},
		{
			name: "shorter than window",
			raw:  []float64{2, 4},
			want: []float64{0.6, 3, 0.6, 0},
		},
		{
			name: "overlapping windows",
			raw:  []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
			want: []float64{1, 1, 1, 0},
		},
		{
			name:   "custom window",
			window: 1,
			raw:    []float64{4, 0, 0, 8},
			want:   []float64{4, 3, 8, 4},
		},
		{
			name: "empty",
			raw:  nil,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&AudioReducer{Window: tt.window}).Reduce(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("Reduce = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !approx(got[i], tt.want[i]) {
					t.Errorf("Reduce[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPoseReducer(t *testing.T) {
	tests := []struct {
		name string
		raw  []float64
		want []float64
	}{
		{
			name: "squat",
			raw:  []float64{90, 170, 0.8},
			want: []float64{90, 10, 10, 5, 2, 3},
		},
		{
			name: "partial uses defaults",
			raw:  []float64{100},
			want: []float64{80, 0, 10, 5, 5, 3},
		},
		{
			name: "empty",
			raw:  []float64{},
			want: nil,
		},
	}
	r := &PoseReducer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Reduce(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("Reduce = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !approx(got[i], tt.want[i]) {
					t.Errorf("Reduce[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewReducer(t *testing.T) {
	for _, name := range []string{"audio", "pose", "mean"} {
		r, err := NewReducer(name)
		if err != nil {
			t.Fatalf("NewReducer(%q): %v", name, err)
		}
		if r.Name() != name {
			t.Errorf("Name = %q, want %q", r.Name(), name)
		}
	}
	if _, err := NewReducer("spectrogram"); err == nil {
		t.Error("unknown reducer should fail")
	}

	RegisterReducer("double", func() Reducer {
		return ReducerFunc{ID: "double", Fn: func(raw []float64) []float64 {
			out := make([]float64, len(raw))
			for i, v := range raw {
				out[i] = 2 * v
			}
			return out
		}}
	})
	r, err := NewReducer("double")
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Reduce([]float64{1, 2}); !reflect.DeepEqual(got, []float64{2, 4}) {
		t.Errorf("double = %v", got)
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestImageInput(t *testing.T) {
	img := solid(10, 6, color.RGBA{R: 255, G: 0, B: 51, A: 255})
	got := ImageInput(img, 4)
	if len(got) != 4*4*3 {
		t.Fatalf("len = %d", len(got))
	}
	for i := 0; i < len(got); i += 3 {
		if !near(got[i], 1) || !near(got[i+1], 0) || !near(got[i+2], 0.2) {
			t.Fatalf("pixel %d = %v", i/3, got[i:i+3])
		}
	}
	if ImageInput(nil, 4) != nil || ImageInput(img, 0) != nil {
		t.Error("nil image or zero size should give nil")
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(3, 3, color.White)); err != nil {
		t.Fatal(err)
	}
	img, format, err := DecodeImage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if format != "png" || img.Bounds().Dx() != 3 {
		t.Errorf("format=%s bounds=%v", format, img.Bounds())
	}
	if _, _, err := DecodeImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Error("garbage should fail")
	}
}

func TestAudioInput(t *testing.T) {
	samples := []float32{-1, 0, 1, 0.5}
	got := AudioInput(samples, 2, 4)
	// 8 个输出位置、4 个采样：step=0.5，每个采样重复两次
	want := []float64{0, 0, 0.5, 0.5, 1, 1, 0.75, 0.75}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AudioInput = %v, want %v", got, want)
	}

	silent := AudioInput(nil, 0, 0)
	if len(silent) != AudioFrames*AudioBins {
		t.Fatalf("default shape = %d", len(silent))
	}
	if silent[0] != 0.5 || silent[len(silent)-1] != 0.5 {
		t.Error("missing samples should map to 0.5")
	}
}

func TestSpectralFeatures(t *testing.T) {
	got := SpectralFeatures([]float64{0, 1, 1, 1, 0.5, 0.5}, 2)
	want := []float64{0.5, 1, 0.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SpectralFeatures = %v, want %v", got, want)
	}
}

func TestPoseGrid(t *testing.T) {
	img := solid(20, 20, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	got := PoseGrid(img, 0)
	if len(got) != PoseGridPoints {
		t.Fatalf("len = %d", len(got))
	}
	for i, v := range got {
		if !approx(v, 1) {
			t.Fatalf("point %d = %v, want 1", i, v)
		}
	}

	// 左半黑右半白：x=(i*7)%W 落在哪半边决定灰度
	half := solid(14, 10, color.Black)
	for y := 0; y < 10; y++ {
		for x := 7; x < 14; x++ {
			half.Set(x, y, color.White)
		}
	}
	got = PoseGrid(half, 3)
	want := []float64{0, 1, 0} // x = 0, 7, 0
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PoseGrid = %v, want %v", got, want)
	}
	if PoseGrid(nil, 3) != nil {
		t.Error("nil image should give nil")
	}
}

func TestHeuristicSource(t *testing.T) {
	src := &HeuristicSource{Reducer: &PoseReducer{}}
	if src.Kind() != pipeline.KindHeuristic || src.Name() != "heuristic.pose" {
		t.Errorf("kind=%s name=%s", src.Kind(), src.Name())
	}
	ctx := context.Background()

	scores, err := src.Scores(ctx, nil, &pipeline.Request{}, nil)
	if err != nil || scores != nil {
		t.Errorf("no features: want (nil, nil), got (%v, %v)", scores, err)
	}

	scores, err = src.Scores(ctx, nil, &pipeline.Request{Features: []float64{90, 170, 0.8}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if scores.Normalize != pipeline.NormalizeSoftmax || len(scores.Values) != 6 {
		t.Errorf("scores = %+v", scores)
	}
}

type fakeFeast struct {
	req  *feast.GetOnlineFeaturesRequest
	resp *feast.GetOnlineFeaturesResponse
	err  error
}

func (f *fakeFeast) GetOnlineFeatures(_ context.Context, req *feast.GetOnlineFeaturesRequest) (*feast.GetOnlineFeaturesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeFeast) Close() error { return nil }

func TestFeastProvider(t *testing.T) {
	client := &fakeFeast{resp: &feast.GetOnlineFeaturesResponse{
		FeatureVectors: []feast.FeatureVector{{
			Values: map[string]interface{}{
				"pose_stats:knee_angle": 95.0,
				"pose_stats:hip_y":      0.7,
			},
		}},
	}}
	p := &FeastProvider{
		Client:   client,
		Project:  "inferkit",
		Features: []string{"pose_stats:knee_angle", "pose_stats:elbow_angle", "pose_stats:hip_y"},
		Defaults: DefaultPoseFeatures().Vector(),
	}
	ictx := core.NewInferenceContext("cam-1", core.ModalityPose)
	ctx := context.Background()

	got, err := p.Features(ctx, ictx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{95, 180, 0.7}; !reflect.DeepEqual(got, want) {
		t.Errorf("Features = %v, want %v", got, want)
	}
	if client.req.EntityRows[0]["session_id"] != "cam-1" {
		t.Errorf("entity row = %v", client.req.EntityRows[0])
	}

	ictx.SetParam("entity_id", "athlete-7")
	if _, err := p.Features(ctx, ictx); err != nil {
		t.Fatal(err)
	}
	if client.req.EntityRows[0]["session_id"] != "athlete-7" {
		t.Errorf("entity param not used: %v", client.req.EntityRows[0])
	}

	client.err = errors.New("connection refused")
	if _, err := p.Features(ctx, ictx); !core.IsUnavailable(err) {
		t.Errorf("want UNAVAILABLE, got %v", err)
	}

	client.err = nil
	client.resp = &feast.GetOnlineFeaturesResponse{FeatureVectors: []feast.FeatureVector{{Values: map[string]interface{}{}}}}
	got, err = p.Features(ctx, ictx)
	if err != nil || got != nil {
		t.Errorf("no numeric features: want (nil, nil), got (%v, %v)", got, err)
	}
}

type countingProvider struct {
	calls int
	feats []float64
	err   error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Features(context.Context, *core.InferenceContext) ([]float64, error) {
	p.calls++
	return p.feats, p.err
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{feats: []float64{90, 170, 0.6}}
	c := NewCachedProvider(inner, 2, time.Second)
	now := time.Unix(100, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if c.Name() != "cached(counting)" {
		t.Errorf("Name = %s", c.Name())
	}

	cam1 := core.NewInferenceContext("cam-1", core.ModalityPose)
	for i := 0; i < 3; i++ {
		got, err := c.Features(ctx, cam1)
		if err != nil || !reflect.DeepEqual(got, inner.feats) {
			t.Fatalf("Features = %v, %v", got, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (cached)", inner.calls)
	}

	// 返回值是副本
	got, _ := c.Features(ctx, cam1)
	got[0] = -1
	if again, _ := c.Features(ctx, cam1); again[0] != 90 {
		t.Error("cached features were mutated through the returned slice")
	}

	now = now.Add(2 * time.Second)
	if _, err := c.Features(ctx, cam1); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("calls after expiry = %d, want 2", inner.calls)
	}

	// 容量 2：第三个实体淘汰最久未访问的 cam-2
	cam2 := core.NewInferenceContext("cam-2", core.ModalityPose)
	cam3 := core.NewInferenceContext("cam-3", core.ModalityPose)
	_, _ = c.Features(ctx, cam2)
	now = now.Add(10 * time.Millisecond)
	_, _ = c.Features(ctx, cam1)
	_, _ = c.Features(ctx, cam3)
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	calls := inner.calls
	_, _ = c.Features(ctx, cam1)
	if inner.calls != calls {
		t.Error("cam-1 should still be cached")
	}
	_, _ = c.Features(ctx, cam2)
	if inner.calls != calls+1 {
		t.Error("cam-2 should have been evicted")
	}

	c.Invalidate(cam1)
	_, _ = c.Features(ctx, cam1)
	if inner.calls != calls+2 {
		t.Error("Invalidate should drop the entry")
	}

	// 错误与无实体的请求不缓存
	inner.err = errors.New("down")
	anon := &core.InferenceContext{Modality: core.ModalityPose}
	if _, err := c.Features(ctx, anon); err == nil {
		t.Error("error should pass through")
	}
	before := c.Len()
	cam4 := core.NewInferenceContext("cam-4", core.ModalityPose)
	if _, err := c.Features(ctx, cam4); err == nil {
		t.Error("error should pass through")
	}
	if c.Len() != before {
		t.Error("failed lookups must not be cached")
	}
}
