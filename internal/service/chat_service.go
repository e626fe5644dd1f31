package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"wumen-backend/internal/config"
	"wumen-backend/internal/model"
	"wumen-backend/internal/session"
	"wumen-backend/internal/stream"
	"wumen-backend/internal/transport"
	"wumen-backend/pkg/logger"
)

var (
	// ErrEmptyInput 空输入，直接拒绝，不算错误场景
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy 该会话已有一轮对话在跑，新提交不排队、不打断
	ErrBusy = errors.New("a turn is already in flight")
)

const (
	// 上游失败时的固定兜底文案，永远不把原始错误透给用户
	apologyText = "抱歉，服务暂时不可用，请稍后重试。"
	// 上游返回成功但内容为空时的占位文案
	emptyAnswerText = "（暂无回答）"
)

// ChatService 驱动一轮 用户→助手 的完整交换：
// 校验输入、落用户消息、调上游、建占位消息、交给流式引擎、定稿。
// 状态机 idle → awaiting_response → streaming_response → idle，
// 每个会话同一时刻最多一轮在途。
type ChatService struct {
	sessions *session.Store
	client   transport.Client
	engine   *stream.Engine

	historyWindow int

	mu     sync.Mutex
	status map[string]model.Status
}

func NewChatService(cfg *config.Config, sessions *session.Store, client transport.Client) *ChatService {
	return &ChatService{
		sessions:      sessions,
		client:        client,
		engine:        stream.NewEngine(cfg.Stream.Interval),
		historyWindow: cfg.Stream.HistoryWindow,
		status:        make(map[string]model.Status),
	}
}

// Status 会话当前的对话状态
func (s *ChatService) Status(sessionID string) model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.status[sessionID]; ok {
		return st
	}
	return model.StatusIdle
}

func (s *ChatService) setStatus(sessionID string, st model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st == model.StatusIdle {
		delete(s.status, sessionID)
		return
	}
	s.status[sessionID] = st
}

// Submit 提交一轮对话。返回的事件通道在本轮定稿后关闭。
// 空输入返回 ErrEmptyInput，会话忙返回 ErrBusy，两者都不产生副作用。
func (s *ChatService) Submit(sessionID, text string) (<-chan model.StreamEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	if _, err := s.sessions.Messages(sessionID); err != nil {
		return nil, err
	}

	// 状态检查和占用必须原子，否则两次并发提交都能挤进来
	s.mu.Lock()
	if st, ok := s.status[sessionID]; ok && st != model.StatusIdle {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.status[sessionID] = model.StatusAwaiting
	s.mu.Unlock()

	userMsg := model.Message{
		ID:          s.sessions.NextMessageID(),
		Role:        model.RoleUser,
		Text:        text,
		DisplayText: text,
		ClockTime:   s.sessions.ClockTime(),
	}
	s.sessions.Append(sessionID, userMsg)

	turns := s.buildHistory(sessionID)

	// 占位助手消息：空文本，streaming=true，流式引擎往里填
	placeholder := model.Message{
		ID:        s.sessions.NextMessageID(),
		Role:      model.RoleAssistant,
		ClockTime: s.sessions.ClockTime(),
		Streaming: true,
	}
	s.sessions.Append(sessionID, placeholder)

	events := make(chan model.StreamEvent, 256)

	events <- model.StreamEvent{
		Type:      "user_message",
		SessionID: sessionID,
		MessageID: userMsg.ID,
		Content:   userMsg.Text,
		ScrollTo:  scrollAnchor(userMsg.ID),
		Timestamp: time.Now().Unix(),
	}

	go s.runTurn(sessionID, placeholder.ID, turns, events)

	return events, nil
}

// runTurn 调上游并播放回答。不挂在请求的 ctx 上：
// 流一旦开始就跑完，前端断开由 handler 丢弃后续帧。
func (s *ChatService) runTurn(sessionID string, messageID int64, turns []model.ChatTurn, events chan<- model.StreamEvent) {
	ctx := context.Background()

	result, err := s.client.SendTurn(ctx, turns)
	if err != nil {
		logger.Errorf("Upstream turn failed for session %s: %v", sessionID, err)
		s.finishWith(sessionID, messageID, apologyText, events)
		return
	}

	pieces := result.Chunks
	if len(pieces) == 0 {
		if result.Answer == "" {
			s.finishWith(sessionID, messageID, emptyAnswerText, events)
			return
		}
		pieces = stream.Split(result.Answer)
	}

	s.setStatus(sessionID, model.StatusStreaming)

	sink := &turnSink{
		svc:       s,
		sessionID: sessionID,
		events:    events,
	}
	s.engine.Run(ctx, messageID, pieces, sink)
}

// buildHistory 取最近 historyWindow 条消息映射成上游轮次
func (s *ChatService) buildHistory(sessionID string) []model.ChatTurn {
	messages, err := s.sessions.Messages(sessionID)
	if err != nil {
		return nil
	}

	if len(messages) > s.historyWindow {
		messages = messages[len(messages)-s.historyWindow:]
	}

	turns := make([]model.ChatTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, model.ChatTurn{
			Role:    model.NormalizeRole(m.Role),
			Content: m.Text,
		})
	}
	return turns
}

// finishWith 一次性写入终稿文本并定稿，用于失败兜底和空回答
func (s *ChatService) finishWith(sessionID string, messageID int64, text string, events chan<- model.StreamEvent) {
	streaming := false
	clock := s.sessions.ClockTime()
	s.sessions.Update(sessionID, messageID, model.MessagePatch{
		Text:        &text,
		DisplayText: &text,
		Streaming:   &streaming,
		ClockTime:   &clock,
	})
	s.setStatus(sessionID, model.StatusIdle)

	events <- model.StreamEvent{
		Type:      "delta",
		SessionID: sessionID,
		MessageID: messageID,
		Content:   text,
		ScrollTo:  scrollAnchor(messageID),
		Timestamp: time.Now().Unix(),
	}
	events <- model.StreamEvent{
		Type:      "done",
		SessionID: sessionID,
		MessageID: messageID,
		Timestamp: time.Now().Unix(),
	}
	close(events)
}

// turnSink 把流式片段落进会话存储并转发给 SSE。
// 累计文本由 sink 自己维护，片段只会从引擎单协程进来。
type turnSink struct {
	svc       *ChatService
	sessionID string
	events    chan<- model.StreamEvent
	acc       strings.Builder
}

func (t *turnSink) Append(messageID int64, piece string) {
	t.acc.WriteString(piece)

	text := t.acc.String()
	streaming := true
	t.svc.sessions.Update(t.sessionID, messageID, model.MessagePatch{
		Text:        &text,
		DisplayText: &text,
		Streaming:   &streaming,
	})

	t.events <- model.StreamEvent{
		Type:      "delta",
		SessionID: t.sessionID,
		MessageID: messageID,
		Content:   piece,
		ScrollTo:  scrollAnchor(messageID),
		Timestamp: time.Now().Unix(),
	}
}

func (t *turnSink) Finalize(messageID int64) {
	streaming := false
	clock := t.svc.sessions.ClockTime()
	t.svc.sessions.Update(t.sessionID, messageID, model.MessagePatch{
		Streaming: &streaming,
		ClockTime: &clock,
	})
	t.svc.setStatus(t.sessionID, model.StatusIdle)

	t.events <- model.StreamEvent{
		Type:      "done",
		SessionID: t.sessionID,
		MessageID: messageID,
		ScrollTo:  scrollAnchor(messageID),
		Timestamp: time.Now().Unix(),
	}
	close(t.events)
}

func scrollAnchor(messageID int64) string {
	return fmt.Sprintf("msg-%d", messageID)
}

// ---- 会话操作的门面，提供给 HTTP 层 ----

func (s *ChatService) NewSession() model.Session {
	return s.sessions.Create(nil)
}

func (s *ChatService) Sessions() []model.Session {
	return s.sessions.Sessions()
}

func (s *ChatService) ActiveSessionID() string {
	return s.sessions.ActiveID()
}

func (s *ChatService) SwitchSession(sessionID string) ([]model.Message, error) {
	if _, err := s.sessions.SwitchActive(sessionID); err != nil {
		return nil, err
	}
	// 补欢迎语后再取一次，保证返回的列表已包含它
	s.sessions.EnsureWelcome(sessionID)
	return s.sessions.Messages(sessionID)
}

func (s *ChatService) RenameSession(sessionID, title string) {
	s.sessions.Rename(sessionID, title)
}

func (s *ChatService) DeleteSession(sessionID string) {
	s.sessions.Delete(sessionID)

	s.mu.Lock()
	delete(s.status, sessionID)
	s.mu.Unlock()
}

func (s *ChatService) SessionMessages(sessionID string) ([]model.Message, error) {
	return s.sessions.Messages(sessionID)
}
