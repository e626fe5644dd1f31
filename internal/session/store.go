package session

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"wumen-backend/internal/model"
	"wumen-backend/internal/render"
	"wumen-backend/internal/storage"
	"wumen-backend/pkg/logger"
)

var ErrSessionNotFound = errors.New("session not found")

// WelcomeText 新会话的固定欢迎语
const WelcomeText = "您好，我是基于吴门医派知识的AI助手，请问有什么可以帮您？"

// 欢迎语签名：含该串的助手消息视为欢迎语，EnsureWelcome 据此判重
const welcomeSignature = "AI助手"

const defaultTitle = "新的会话"

// Store 会话列表的唯一权威，最近使用的排在最前。
// 每次变更先改内存再整体落一次快照，调用方看不到中间态。
// 缺失的会话/消息一律静默忽略：删除和追加可能在 UI 上竞争，
// 丢一次更新比报错崩页面好。
type Store struct {
	mu       sync.Mutex
	sessions []model.Session
	activeID string

	store    storage.Store
	key      string
	renderer render.Renderer

	now       func() time.Time
	lastMsgID int64
	lastSidMs int64
}

func NewStore(st storage.Store, key string, renderer render.Renderer) *Store {
	return &Store{
		store:    st,
		key:      key,
		renderer: renderer,
		now:      time.Now,
	}
}

// Init 从持久层恢复快照；没有任何会话时合成一个初始会话。
// 激活最近的会话并补齐欢迎语。
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.store.Load(s.key)
	if err != nil {
		return err
	}

	s.sessions = sessions

	if len(s.sessions) == 0 {
		s.createLocked(nil)
	} else {
		s.activeID = s.sessions[0].ID
		// 恢复后的助手消息需要重新渲染（快照不信任缓存的节点）
		for i := range s.sessions {
			s.rerenderAll(&s.sessions[i])
		}
	}

	s.ensureWelcomeLocked(s.activeID)
	return nil
}

// Create 新建会话并置为当前会话。seed 为空时插入欢迎语。
func (s *Store) Create(seed []model.Message) model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(seed)
}

func (s *Store) createLocked(seed []model.Message) model.Session {
	now := s.now()

	messages := seed
	if len(messages) == 0 {
		messages = []model.Message{s.welcomeMessage()}
	}

	sess := model.Session{
		ID:        s.nextSessionID(),
		Title:     defaultTitle,
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 新会话排在最前
	s.sessions = append([]model.Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persist()

	return sess
}

// EnsureWelcome 幂等补齐欢迎语：已有签名匹配的助手消息时不动
func (s *Store) EnsureWelcome(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureWelcomeLocked(sessionID)
}

func (s *Store) ensureWelcomeLocked(sessionID string) {
	sess := s.findLocked(sessionID)
	if sess == nil {
		return
	}

	for _, m := range sess.Messages {
		if m.Role == model.RoleAssistant && strings.Contains(m.Text, welcomeSignature) {
			return
		}
	}

	// 欢迎语插在消息列表头部
	sess.Messages = append([]model.Message{s.welcomeMessage()}, sess.Messages...)
	sess.UpdatedAt = s.now()
	s.persist()
}

// SwitchActive 切换当前会话，返回重新渲染后的消息列表
func (s *Store) SwitchActive(sessionID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	s.activeID = sessionID
	s.rerenderAll(sess)

	out := make([]model.Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out, nil
}

// Rename 改会话标题，空标题不生效
func (s *Store) Rename(sessionID, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return
	}

	sess.Title = title
	sess.UpdatedAt = s.now()
	s.persist()
}

// Delete 删除会话。删掉当前会话后：还有剩余就激活最近的一个，
// 一个不剩就合成新的初始会话——列表任何时候至少有一个会话。
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)

	if s.activeID == sessionID {
		if len(s.sessions) == 0 {
			s.createLocked(nil)
			return
		}
		s.activeID = s.sessions[0].ID
	}

	s.persist()
}

// Append 往会话追加消息。会话不存在时静默丢弃（与删除竞争属正常）
func (s *Store) Append(sessionID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return
	}

	if msg.Role == model.RoleAssistant {
		msg.Rendered = s.render(msg)
	}

	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = s.now()
	s.persist()
}

// Update 按 patch 修改消息，助手消息改完文本后重渲染。
// 会话或消息不存在时静默忽略。
func (s *Store) Update(sessionID string, messageID int64, patch model.MessagePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return
	}

	for i := range sess.Messages {
		if sess.Messages[i].ID != messageID {
			continue
		}

		m := &sess.Messages[i]
		if patch.Text != nil {
			m.Text = *patch.Text
		}
		if patch.DisplayText != nil {
			m.DisplayText = *patch.DisplayText
		}
		if patch.Streaming != nil {
			m.Streaming = *patch.Streaming
		}
		if patch.ClockTime != nil {
			m.ClockTime = *patch.ClockTime
		}

		if m.Role == model.RoleAssistant {
			m.Rendered = s.render(*m)
		}

		sess.UpdatedAt = s.now()
		s.persist()
		return
	}
}

// NextMessageID 分配消息 ID：创建时刻毫秒数，同毫秒内递增保证唯一
func (s *Store) NextMessageID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextMessageIDLocked()
}

func (s *Store) nextMessageIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastMsgID {
		id = s.lastMsgID + 1
	}
	s.lastMsgID = id
	return id
}

// ActiveID 当前会话 ID
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Sessions 会话列表快照（不含消息体之外的共享引用）
func (s *Store) Sessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Messages 指定会话的消息快照
func (s *Store) Messages(sessionID string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.findLocked(sessionID)
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	out := make([]model.Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out, nil
}

// ClockTime 消息时间戳的展示格式
func (s *Store) ClockTime() string {
	return s.now().Format("15:04")
}

func (s *Store) findLocked(sessionID string) *model.Session {
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			return &s.sessions[i]
		}
	}
	return nil
}

func (s *Store) welcomeMessage() model.Message {
	return model.Message{
		ID:          s.nextMessageIDLocked(),
		Role:        model.RoleAssistant,
		Text:        WelcomeText,
		DisplayText: WelcomeText,
		ClockTime:   s.now().Format("15:04"),
		Rendered:    s.renderText(WelcomeText),
	}
}

// nextSessionID 时间派生的会话 ID（毫秒时间戳转 36 进制），
// 同毫秒内创建时顺延一毫秒保证唯一
func (s *Store) nextSessionID() string {
	ms := s.now().UnixMilli()
	if ms <= s.lastSidMs {
		ms = s.lastSidMs + 1
	}
	s.lastSidMs = ms
	return strconv.FormatInt(ms, 36)
}

func (s *Store) render(m model.Message) []model.RenderNode {
	text := m.DisplayText
	if text == "" {
		text = m.Text
	}
	return s.renderText(text)
}

func (s *Store) renderText(text string) []model.RenderNode {
	if s.renderer == nil {
		return nil
	}
	return s.renderer.Render(text)
}

// rerenderAll 整个会话的助手消息重新过一遍渲染器
func (s *Store) rerenderAll(sess *model.Session) {
	for i := range sess.Messages {
		if sess.Messages[i].Role == model.RoleAssistant {
			sess.Messages[i].Rendered = s.render(sess.Messages[i])
		}
	}
}

// persist 整体落一次快照；失败只记日志，内存状态仍是权威
func (s *Store) persist() {
	if err := s.store.Save(s.key, s.sessions); err != nil {
		logger.Errorf("Failed to persist sessions: %v", err)
	}
}
