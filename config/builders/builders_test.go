package builders

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rushteam/inferkit/config"
	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/feast"
	"github.com/rushteam/inferkit/model"
	"github.com/rushteam/inferkit/pipeline"
	"github.com/rushteam/inferkit/ranker"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisteredTypes(t *testing.T) {
	for _, typ := range []string{"linear", "rpc", "tf_serving", "torch_serve", "kserve"} {
		if !config.Supported(typ) {
			t.Errorf("%s not registered", typ)
		}
	}
}

func TestBuildModels(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "w.json")
	if err := os.WriteFile(weights, []byte(`{"weights": [[1, 0], [0, 1]], "bias": [0, 0]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tests := []struct {
		name     string
		mc       *config.ModelConfig
		wantName string
		wantErr  bool
	}{
		{name: "linear", mc: &config.ModelConfig{Type: "linear", Path: weights}, wantName: "linear"},
		{name: "linear without path", mc: &config.ModelConfig{Type: "linear"}, wantErr: true},
		{name: "rpc", mc: &config.ModelConfig{Type: "rpc", Endpoint: "http://localhost:1/predict", ModelName: "poses"}, wantName: "poses"},
		{name: "rpc without endpoint", mc: &config.ModelConfig{Type: "rpc"}, wantErr: true},
		{name: "tf serving", mc: &config.ModelConfig{Type: "tf_serving", Endpoint: "http://localhost:8501", ModelName: "trash"}, wantName: "trash"},
		{name: "kserve v2", mc: &config.ModelConfig{Type: "kserve", Endpoint: "http://localhost:8000", ModelName: "genres", Protocol: "v2",
			Params: map[string]interface{}{"token": "secret"}}, wantName: "genres"},
		{name: "service without model name", mc: &config.ModelConfig{Type: "torch_serve", Endpoint: "http://localhost:8080"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := config.BuildModel(ctx, tt.mc, []string{"a", "b"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && m.Name() != tt.wantName {
				t.Errorf("Name = %s, want %s", m.Name(), tt.wantName)
			}
		})
	}

	m, err := config.BuildModel(ctx, &config.ModelConfig{Type: "tf_serving", Endpoint: "http://localhost:8501", ModelName: "trash"}, []string{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	if sm, ok := m.(*model.ServiceModel); !ok || len(sm.Labels) != 2 {
		t.Errorf("service model labels not wired: %#v", m)
	}
}

func TestBuildDemoRuntime(t *testing.T) {
	ctx := context.Background()
	rt, err := Build(ctx, config.DefaultConfig(),
		WithLogger(quietLogger()),
		WithRankerFactory(func(k int) *ranker.Ranker { return ranker.New(ranker.WithSeed(1), ranker.WithTopK(k)) }))
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(ctx)

	if len(rt.Adapters) != 3 || rt.Store == nil || rt.History == nil {
		t.Fatalf("runtime incomplete: %+v", rt)
	}
	if rt.Reps[core.ModalityPose] == nil {
		t.Error("pose rep counter missing")
	}

	image, err := rt.Adapter(core.ModalityImage)
	if err != nil {
		t.Fatal(err)
	}
	if got := image.Labels(); len(got) != 6 || got[0] != "Carton" {
		t.Errorf("image labels = %v", got)
	}
	res, err := image.Infer(ctx, nil, &pipeline.Request{Input: []float64{0.1}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != core.ModeFallback || len(res.TopK) != 3 {
		t.Errorf("demo image result = %+v", res)
	}

	pose, _ := rt.Adapter(core.ModalityPose)
	res, err = pose.Infer(ctx, nil, &pipeline.Request{Features: []float64{90, 170, 0.8}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != core.ModeHeuristic || res.Top1.Label != "sentadilla" {
		t.Errorf("pose heuristic result = %+v", res.Top1)
	}
	if _, err := rt.Renderer(core.ModalityPose).Coach(res); err != nil {
		t.Errorf("pose coach: %v", err)
	}
}

func TestBuildRuntimeWithRemoteModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Instances [][]float64 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scores := make([][]float64, len(body.Instances))
		for i := range scores {
			scores[i] = []float64{0, 5, 0, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer srv.Close()

	dir := t.TempDir()
	overrides := filepath.Join(dir, "audio.yaml")
	if err := os.WriteFile(overrides, []byte("cumbia.wav: salsa\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Modalities = map[string]*config.ModalityConfig{
		"audio": {
			TopK:      2,
			Model:     &config.ModelConfig{Type: "rpc", Endpoint: srv.URL},
			Overrides: overrides,
			Heuristic: "audio",
		},
	}
	ctx := context.Background()
	rt, err := Build(ctx, cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(ctx)

	if rt.Loaded[core.ModalityAudio].Demo() {
		t.Fatal("audio model should be loaded")
	}
	audio, _ := rt.Adapter(core.ModalityAudio)
	if got := audio.Sources(); len(got) != 3 {
		t.Errorf("sources = %v", got)
	}

	res, err := audio.Infer(ctx, nil, &pipeline.Request{Input: []float64{0.5, 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != core.ModeModel || res.Top1.Label != "rap" || len(res.TopK) != 2 {
		t.Errorf("model result = %+v", res)
	}

	res, err = audio.Infer(ctx, nil, &pipeline.Request{Filename: "clips/cumbia.wav", Input: []float64{0.5}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != core.ModeOverride || res.Top1.Label != "salsa" {
		t.Errorf("override result = %+v", res)
	}

	if _, err := rt.Adapter(core.ModalityImage); !core.IsNotFound(err) {
		t.Errorf("unconfigured modality err = %v", err)
	}
}

func TestBuildUnreachableModelFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not ready", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Modalities = map[string]*config.ModalityConfig{
		"image": {
			InputSize: 4,
			Model:     &config.ModelConfig{Type: "tf_serving", Endpoint: srv.URL, ModelName: "trash"},
		},
	}
	ctx := context.Background()
	rt, err := Build(ctx, cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(ctx)

	loaded := rt.Loaded[core.ModalityImage]
	if !loaded.Demo() || loaded.Err == nil {
		t.Errorf("warm-up failure should enter demo mode: %+v", loaded)
	}
	image, _ := rt.Adapter(core.ModalityImage)
	if len(image.Sources()) != 0 {
		t.Errorf("demo image should have no sources, got %v", image.Sources())
	}
}

func TestBuildInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Modalities["video"] = &config.ModalityConfig{}
	if _, err := Build(context.Background(), cfg, WithLogger(quietLogger())); !core.IsInvalidInput(err) {
		t.Errorf("want INVALID_INPUT, got %v", err)
	}
}

func TestBuildRuntimeWithFeastFeatures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{
			"metadata": {"feature_names": ["pose_stats__knee_angle", "pose_stats__elbow_angle", "pose_stats__hip_y"]},
			"results": [{"values": [178]}, {"values": [60]}, {"values": [0.5]}]
		}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Feast = config.FeastConfig{Enabled: true, Endpoint: srv.URL, Project: "inferkit"}
	cfg.Modality(core.ModalityPose).Features = &config.FeatureConfig{
		Names:    []string{"pose_stats:knee_angle", "pose_stats:elbow_angle", "pose_stats:hip_y"},
		CacheTTL: 60000,
	}
	ctx := context.Background()
	rt, err := Build(ctx, cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(ctx)
	if rt.Feast == nil {
		t.Fatal("feast client not built")
	}

	pose, _ := rt.Adapter(core.ModalityPose)
	for i := 0; i < 3; i++ {
		ictx := core.NewInferenceContext("gym-1", core.ModalityPose)
		res, err := pose.Infer(ctx, ictx, &pipeline.Request{})
		if err != nil {
			t.Fatal(err)
		}
		if res.Mode != core.ModeHeuristic || res.Top1.Label != "flexión" {
			t.Fatalf("result from feast features = %+v", res.Top1)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("feast hits = %d, want 1 (cached)", got)
	}
}

func TestFeastOptions(t *testing.T) {
	tests := []struct {
		name     string
		fc       config.FeastConfig
		wantAuth bool
		wantTLS  bool
	}{
		{name: "no token", fc: config.FeastConfig{Timeout: 2}},
		{name: "token over plaintext", fc: config.FeastConfig{Token: "t"}, wantAuth: true},
		{name: "token over tls", fc: config.FeastConfig{Token: "t", TLS: true}, wantAuth: true, wantTLS: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cc feast.ClientConfig
			for _, opt := range feastOptions(tt.fc) {
				opt(&cc)
			}
			if (cc.Auth != nil) != tt.wantAuth {
				t.Fatalf("Auth = %+v, want set=%v", cc.Auth, tt.wantAuth)
			}
			if cc.Auth != nil && cc.Auth.TLS != tt.wantTLS {
				t.Errorf("TLS = %v, want %v", cc.Auth.TLS, tt.wantTLS)
			}
			if tt.fc.Timeout > 0 && cc.Timeout != time.Duration(tt.fc.Timeout)*time.Second {
				t.Errorf("Timeout = %v", cc.Timeout)
			}
		})
	}
}
