package feature

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Reducer 把某个模态的原始信号压缩成一个很小的定长向量，后续交给 softmax。
// 它只是缺少训练好的聚合器时的替身：廉价、确定、无状态。
type Reducer interface {
	Name() string
	Reduce(raw []float64) []float64
}

// ReducerFunc 允许用普通函数实现 Reducer。
type ReducerFunc struct {
	ID string
	Fn func(raw []float64) []float64
}

func (f ReducerFunc) Name() string { return f.ID }

func (f ReducerFunc) Reduce(raw []float64) []float64 {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(raw)
}

// AudioReducer 把频谱特征向量压缩为 [低频均值, 整体均值, 高频均值, |高频-低频|]。
// 低频/高频分别取前 Window 个与后 Window 个元素，总是除以 Window：
// 向量短于 Window 时缺失的部分按 0 计。
type AudioReducer struct {
	Window int // 默认 10
}

func (r *AudioReducer) Name() string { return "audio" }

func (r *AudioReducer) Reduce(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	window := r.Window
	if window <= 0 {
		window = 10
	}
	n := min(window, len(raw))
	bass := sum(raw[:n]) / float64(window)
	treble := sum(raw[len(raw)-n:]) / float64(window)
	return []float64{bass, mean(raw), treble, math.Abs(treble - bass)}
}

// PoseFeatures 是姿态启发式的输入：关节角度（度）与髋部的归一化高度。
type PoseFeatures struct {
	KneeAngle  float64 `json:"knee_angle"`
	ElbowAngle float64 `json:"elbow_angle"`
	HipY       float64 `json:"hip_y"`
}

// DefaultPoseFeatures 是站立姿态：膝、肘伸直，髋部居中。
func DefaultPoseFeatures() PoseFeatures {
	return PoseFeatures{KneeAngle: 180, ElbowAngle: 180, HipY: 0.5}
}

// Vector 按 PoseReducer 期望的顺序展开：[knee, elbow, hipY]。
func (p PoseFeatures) Vector() []float64 {
	return []float64{p.KneeAngle, p.ElbowAngle, p.HipY}
}

// PoseFeaturesFromVector 从 [knee, elbow, hipY] 还原，缺失项取默认值。
func PoseFeaturesFromVector(raw []float64) PoseFeatures {
	p := DefaultPoseFeatures()
	if len(raw) > 0 {
		p.KneeAngle = raw[0]
	}
	if len(raw) > 1 {
		p.ElbowAngle = raw[1]
	}
	if len(raw) > 2 {
		p.HipY = raw[2]
	}
	return p
}

// PoseReducer 用简单几何比例给六种动作打分：
// [180-膝角, 180-肘角, 10, 5, 10*(1-hipY), 3]
type PoseReducer struct{}

func (r *PoseReducer) Name() string { return "pose" }

func (r *PoseReducer) Reduce(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	p := PoseFeaturesFromVector(raw)
	return []float64{
		180 - p.KneeAngle,
		180 - p.ElbowAngle,
		10,
		5,
		10 * (1 - p.HipY),
		3,
	}
}

// MeanReducer 只保留整体均值与首尾窗口均值，适合未知模态。
type MeanReducer struct {
	Window int
}

func (r *MeanReducer) Name() string { return "mean" }

func (r *MeanReducer) Reduce(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	window := r.Window
	if window <= 0 || window > len(raw) {
		window = len(raw)
	}
	return []float64{mean(raw[:window]), mean(raw), mean(raw[len(raw)-window:])}
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return sum(v) / float64(len(v))
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

var (
	reducersMu sync.RWMutex
	reducers   = map[string]func() Reducer{
		"audio": func() Reducer { return &AudioReducer{Window: 10} },
		"pose":  func() Reducer { return &PoseReducer{} },
		"mean":  func() Reducer { return &MeanReducer{} },
	}
)

// RegisterReducer 注册一种命名的 Reducer，供配置驱动使用。
func RegisterReducer(name string, factory func() Reducer) {
	if name == "" || factory == nil {
		return
	}
	reducersMu.Lock()
	defer reducersMu.Unlock()
	reducers[name] = factory
}

// NewReducer 按名称创建 Reducer。
func NewReducer(name string) (Reducer, error) {
	reducersMu.RLock()
	factory, ok := reducers[name]
	reducersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown reducer %q (supported: %v)", name, ReducerNames())
	}
	return factory(), nil
}

// ReducerNames 返回已注册的 Reducer 名称（排序）。
func ReducerNames() []string {
	reducersMu.RLock()
	defer reducersMu.RUnlock()
	names := make([]string, 0, len(reducers))
	for n := range reducers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
