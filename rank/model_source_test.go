package rank

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rushteam/inferkit/pipeline"
)

type fakeClassifier struct {
	out []float64
	err error
	got []float64
}

func (f *fakeClassifier) Name() string { return "fake" }

func (f *fakeClassifier) Predict(_ context.Context, input []float64) ([]float64, error) {
	f.got = input
	return f.out, f.err
}

func TestModelSource(t *testing.T) {
	ctx := context.Background()
	clf := &fakeClassifier{out: []float64{0.1, 2.5}}
	src := &ModelSource{Model: clf}

	if src.Name() != "model.fake" || src.Kind() != pipeline.KindModel {
		t.Errorf("name=%s kind=%s", src.Name(), src.Kind())
	}

	scores, err := src.Scores(ctx, nil, &pipeline.Request{}, nil)
	if err != nil || scores != nil {
		t.Errorf("no input: want (nil, nil), got (%v, %v)", scores, err)
	}

	input := []float64{1, 2, 3}
	scores, err = src.Scores(ctx, nil, &pipeline.Request{Input: input}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(clf.got, input) {
		t.Errorf("model got %v", clf.got)
	}
	if scores.Normalize != pipeline.NormalizeSoftmax || !reflect.DeepEqual(scores.Values, clf.out) {
		t.Errorf("scores = %+v", scores)
	}

	src.Normalize = pipeline.NormalizeNone
	scores, _ = src.Scores(ctx, nil, &pipeline.Request{Input: input}, nil)
	if scores.Normalize != pipeline.NormalizeNone {
		t.Errorf("normalize = %s", scores.Normalize)
	}

	clf.err = errors.New("session closed")
	if _, err := src.Scores(ctx, nil, &pipeline.Request{Input: input}, nil); !errors.Is(err, clf.err) {
		t.Errorf("want model error, got %v", err)
	}

	empty := &ModelSource{}
	if empty.Name() != "model" {
		t.Errorf("Name = %s", empty.Name())
	}
	if s, err := empty.Scores(ctx, nil, &pipeline.Request{Input: input}, nil); s != nil || err != nil {
		t.Error("nil model should not apply")
	}
}
