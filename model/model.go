package model

import "context"

// Classifier 是已加载模型的最小抽象：输入展平张量，输出与标签集同序的原始分数。
// 具体实现可以是本地线性模型，也可以是远程服务（TF Serving / TorchServe / KServe / 自定义 RPC）。
// 分数是否已归一由调用方配置决定，Classifier 对排序一无所知。
type Classifier interface {
	Name() string
	Predict(ctx context.Context, input []float64) ([]float64, error)
}

// Sized 由知道自身输入维度的模型实现，预热时据此构造零向量。
type Sized interface {
	InputLen() int
}

// Closer 由持有连接等外部资源的模型实现。
type Closer interface {
	Close(ctx context.Context) error
}
