package session

import (
	"strings"
	"testing"

	"wumen-backend/internal/model"
	"wumen-backend/internal/render"
	"wumen-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *storage.MemoryStore) {
	t.Helper()

	mem := storage.NewMemoryStore()
	st := NewStore(mem, "wm_kg_sessions", render.NewMarkdownRenderer())
	require.NoError(t, st.Init())
	return st, mem
}

func userMessage(st *Store, text string) model.Message {
	return model.Message{
		ID:          st.NextMessageID(),
		Role:        model.RoleUser,
		Text:        text,
		DisplayText: text,
		ClockTime:   st.ClockTime(),
	}
}

func TestInitCreatesInitialSession(t *testing.T) {
	st, _ := newTestStore(t)

	sessions := st.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, sessions[0].ID, st.ActiveID())
	assert.Equal(t, "新的会话", sessions[0].Title)

	// 初始会话自带欢迎语
	require.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, model.RoleAssistant, sessions[0].Messages[0].Role)
	assert.Equal(t, WelcomeText, sessions[0].Messages[0].Text)
}

func TestInitRestoresSnapshot(t *testing.T) {
	mem := storage.NewMemoryStore()
	require.NoError(t, mem.Save("wm_kg_sessions", []model.Session{
		{
			ID:    "abc",
			Title: "吴门医案讨论",
			Messages: []model.Message{
				{ID: 1, Role: model.RoleAssistant, Text: WelcomeText},
				{ID: 2, Role: model.RoleUser, Text: "温病如何辨证？"},
			},
		},
	}))

	st := NewStore(mem, "wm_kg_sessions", render.NewMarkdownRenderer())
	require.NoError(t, st.Init())

	assert.Equal(t, "abc", st.ActiveID())
	messages, err := st.Messages("abc")
	require.NoError(t, err)
	assert.Len(t, messages, 2)
	// 恢复后助手消息重新渲染过
	assert.NotEmpty(t, messages[0].Rendered)
}

func TestAppendCountLaw(t *testing.T) {
	st, _ := newTestStore(t)
	sid := st.ActiveID()

	before, err := st.Messages(sid)
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		st.Append(sid, userMessage(st, "消息"))
	}

	after, err := st.Messages(sid)
	require.NoError(t, err)
	assert.Equal(t, len(before)+n, len(after))
}

func TestAppendMissingSessionIsSilentNoop(t *testing.T) {
	st, _ := newTestStore(t)

	st.Append("no-such-session", userMessage(st, "落空"))

	// 仅初始会话存在，且未被污染
	sessions := st.Sessions()
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].Messages, 1)
}

func TestEnsureWelcomeIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	sid := st.ActiveID()

	first, err := st.Messages(sid)
	require.NoError(t, err)

	st.EnsureWelcome(sid)
	st.EnsureWelcome(sid)

	again, err := st.Messages(sid)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestEnsureWelcomeInsertsAtHead(t *testing.T) {
	st, _ := newTestStore(t)

	// 种子消息里没有欢迎语
	sess := st.Create([]model.Message{
		{ID: st.NextMessageID(), Role: model.RoleUser, Text: "你好"},
	})

	st.EnsureWelcome(sess.ID)

	messages, err := st.Messages(sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleAssistant, messages[0].Role)
	assert.True(t, strings.Contains(messages[0].Text, "AI助手"))
}

func TestCreatePrependsSession(t *testing.T) {
	st, _ := newTestStore(t)
	firstID := st.ActiveID()

	created := st.Create(nil)

	sessions := st.Sessions()
	require.Len(t, sessions, 2)
	// 新会话排最前并成为当前会话
	assert.Equal(t, created.ID, sessions[0].ID)
	assert.Equal(t, created.ID, st.ActiveID())
	assert.Equal(t, firstID, sessions[1].ID)
	assert.NotEqual(t, created.ID, firstID)
}

func TestSwitchActive(t *testing.T) {
	st, _ := newTestStore(t)
	firstID := st.ActiveID()
	st.Create(nil)

	messages, err := st.SwitchActive(firstID)
	require.NoError(t, err)
	assert.Equal(t, firstID, st.ActiveID())
	assert.NotEmpty(t, messages)

	_, err = st.SwitchActive("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRename(t *testing.T) {
	st, _ := newTestStore(t)
	sid := st.ActiveID()

	st.Rename(sid, "伤寒条辨")
	assert.Equal(t, "伤寒条辨", st.Sessions()[0].Title)

	// 空白标题不生效
	st.Rename(sid, "   ")
	assert.Equal(t, "伤寒条辨", st.Sessions()[0].Title)
}

func TestDeleteLastSessionRecreates(t *testing.T) {
	st, _ := newTestStore(t)
	sid := st.ActiveID()

	st.Delete(sid)

	sessions := st.Sessions()
	require.Len(t, sessions, 1)
	assert.NotEqual(t, sid, sessions[0].ID)
	assert.Equal(t, sessions[0].ID, st.ActiveID())

	// 新会话带欢迎语
	require.NotEmpty(t, sessions[0].Messages)
	assert.Equal(t, WelcomeText, sessions[0].Messages[0].Text)
}

func TestDeleteActiveActivatesMostRecent(t *testing.T) {
	st, _ := newTestStore(t)
	oldID := st.ActiveID()
	second := st.Create(nil)
	third := st.Create(nil)

	st.Delete(third.ID)

	// 剩余里最近的是 second
	assert.Equal(t, second.ID, st.ActiveID())
	require.Len(t, st.Sessions(), 2)

	// 删除非当前会话不影响 active 指针
	st.Delete(oldID)
	assert.Equal(t, second.ID, st.ActiveID())
}

func TestUpdateMessage(t *testing.T) {
	st, _ := newTestStore(t)
	sid := st.ActiveID()

	msg := model.Message{
		ID:        st.NextMessageID(),
		Role:      model.RoleAssistant,
		Streaming: true,
	}
	st.Append(sid, msg)

	text := "# 标题\n\n正文"
	streaming := false
	st.Update(sid, msg.ID, model.MessagePatch{
		Text:        &text,
		DisplayText: &text,
		Streaming:   &streaming,
	})

	messages, err := st.Messages(sid)
	require.NoError(t, err)
	got := messages[len(messages)-1]
	assert.Equal(t, text, got.Text)
	assert.False(t, got.Streaming)
	// 助手消息文本变更后重新渲染
	require.NotEmpty(t, got.Rendered)
	assert.Equal(t, "heading", got.Rendered[0].Type)
}

func TestUpdateMissingMessageIsSilentNoop(t *testing.T) {
	st, _ := newTestStore(t)
	sid := st.ActiveID()

	before, err := st.Messages(sid)
	require.NoError(t, err)

	text := "不该出现"
	st.Update(sid, 999999, model.MessagePatch{Text: &text})
	st.Update("missing", 1, model.MessagePatch{Text: &text})

	after, err := st.Messages(sid)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEveryMutationPersists(t *testing.T) {
	st, mem := newTestStore(t)
	sid := st.ActiveID()

	st.Append(sid, userMessage(st, "持久化检查"))

	snapshot, err := mem.Load("wm_kg_sessions")
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	last := snapshot[0].Messages[len(snapshot[0].Messages)-1]
	assert.Equal(t, "持久化检查", last.Text)
}

func TestNextMessageIDMonotonic(t *testing.T) {
	st, _ := newTestStore(t)

	prev := st.NextMessageID()
	for i := 0; i < 100; i++ {
		id := st.NextMessageID()
		assert.Greater(t, id, prev)
		prev = id
	}
}
