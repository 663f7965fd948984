package chat

// Modality 单轮回复的产出形态
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
	ModalityImage Modality = "image"
)

// TurnState 轮次处理状态，线性推进不回退
type TurnState string

const (
	StateRouting       TurnState = "ROUTING"
	StateGenerating    TurnState = "GENERATING"
	StateMaterializing TurnState = "MATERIALIZING"
	StateDone          TurnState = "DONE"
)

// TurnResult 一轮处理的最终产出。
// ReplyText 始终有值；Audio/ImagePath 仅在对应形态下填充，
// 物化失败时形态回落为 text 由传输层兜底。
type TurnResult struct {
	Modality  Modality
	ReplyText string
	Audio     []byte
	ImagePath string
	// CacheHit 文本是否命中问答缓存
	CacheHit bool
}
