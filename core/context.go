package core

import "github.com/google/uuid"

// InferenceContext 承载一次推理请求的会话/来源信息，贯穿整个分数来源链透传。
// 它不持有任何界面状态：标签与分数始终作为显式参数传入。
type InferenceContext struct {
	RequestID string // 每次推理唯一，默认由 NewInferenceContext 生成
	SessionID string // 会话（一个摄像头/麦克风会话或一次 CLI 调用）
	Modality  Modality

	// Source 输入来源：webcam / upload / mic / file
	Source string

	// Filename 上传文件名（可选，演示覆盖表按它匹配）
	Filename string

	// Params 请求级参数，例如：
	// - entity_id：从在线特征库取特征的实体 ID
	// - fps：摄像头循环的目标帧率
	Params map[string]any
}

// NewInferenceContext 创建带随机 RequestID 的上下文。
func NewInferenceContext(sessionID string, m Modality) *InferenceContext {
	return &InferenceContext{
		RequestID: uuid.NewString(),
		SessionID: sessionID,
		Modality:  m,
		Params:    make(map[string]any),
	}
}

// Param 读取请求参数，不存在时返回 nil。
func (ictx *InferenceContext) Param(key string) any {
	if ictx == nil || ictx.Params == nil {
		return nil
	}
	return ictx.Params[key]
}

// SetParam 写入请求参数。
func (ictx *InferenceContext) SetParam(key string, v any) {
	if ictx.Params == nil {
		ictx.Params = make(map[string]any)
	}
	ictx.Params[key] = v
}
