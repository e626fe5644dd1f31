package model

import "time"

// 消息角色。历史快照里可能残留小程序时代的 "ai" 标签，
// 读入时由 NormalizeRole 统一成 assistant。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NormalizeRole 兼容旧快照中的角色标签
func NormalizeRole(role string) string {
	if role == "ai" {
		return RoleAssistant
	}
	return role
}

// 会话状态：空闲 / 等待后端应答 / 流式输出中
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAwaiting  Status = "awaiting_response"
	StatusStreaming Status = "streaming_response"
)

// RenderNode 是 Markdown 渲染后的展示节点，前端按 Type 选择模板
type RenderNode struct {
	Type  string `json:"type"`            // heading, paragraph, list_item, code_block, text, emphasis
	Level int    `json:"level,omitempty"` // 标题层级 / 列表缩进
	Text  string `json:"text"`
}

// Message 单条消息。ID 取创建时刻的毫秒时间戳，会话内唯一。
// Streaming 只在占位消息创建到定稿之间为 true。
type Message struct {
	ID          int64        `json:"id"`
	Role        string       `json:"role"`
	Text        string       `json:"text"`
	DisplayText string       `json:"display"`
	Rendered    []RenderNode `json:"rendered,omitempty"`
	ClockTime   string       `json:"time"` // HH:MM
	Streaming   bool         `json:"streaming,omitempty"`
}

// Session 一个会话及其全部消息，按追加顺序排列
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatTurn 发往上游的一轮对话内容
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnResult 上游应答的归一化结果：要么是分好块的 Chunks，
// 要么是单条 Answer，由流式引擎自行切分
type TurnResult struct {
	Chunks []string `json:"chunks,omitempty"`
	Answer string   `json:"answer,omitempty"`
}

// MessagePatch 对已存在消息的增量修改，nil 字段表示不动
type MessagePatch struct {
	Text        *string
	DisplayText *string
	Streaming   *bool
	ClockTime   *string
}
