package dsl

import (
	"testing"

	"github.com/rushteam/inferkit/core"
)

func TestEvaluate(t *testing.T) {
	res := &core.TopResult{
		Mode:     core.ModeModel,
		Modality: core.ModalityPose,
		Top1:     &core.RankedItem{Label: "sentadilla", Prob: 0.82},
		TopK: []core.RankedItem{
			{Label: "sentadilla", Prob: 0.82},
			{Label: "plancha", Prob: 0.1},
		},
	}
	tests := []struct {
		expr    string
		want    bool
		wantErr bool
	}{
		{expr: "", want: true},
		{expr: "prob > 0.7", want: true},
		{expr: "top1.prob > 0.9", want: false},
		{expr: `label == "sentadilla" && modality == "pose"`, want: true},
		{expr: `top1.label == "plancha"`, want: false},
		{expr: `mode != "model"`, want: false},
		{expr: `topk.size() == 2 && topk[1].label == "plancha"`, want: true},
		{expr: "prob +", wantErr: true},
		{expr: "label", wantErr: true},
		{expr: "unknown_var > 1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := NewEval(res).Evaluate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate(%q) err = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluateEmptyResult(t *testing.T) {
	got, err := NewEval(nil).Evaluate(`label == "" && prob == 0.0`)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Error("empty result should expose zero values")
	}
}

func TestCompile(t *testing.T) {
	if err := Compile("prob >= 0.5"); err != nil {
		t.Errorf("Compile: %v", err)
	}
	if err := Compile("prob >="); err == nil {
		t.Error("syntax error should be reported")
	}
}
