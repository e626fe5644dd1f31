package handler

import (
	"errors"
	"net/http"
	"time"

	"wumen-backend/internal/model"
	"wumen-backend/internal/service"
	"wumen-backend/internal/session"
	"wumen-backend/internal/utils"
	"wumen-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// Submit 提交一轮对话，以 SSE 把本轮事件推给前端。
// 空输入和忙态是静默拒绝：前端不弹错，只是这次点击无效。
func (h *ChatHandler) Submit(c *gin.Context) {
	var req model.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	turnID := uuid.New().String()

	events, err := h.chatService.Submit(req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyInput), errors.Is(err, service.ErrBusy):
			c.JSON(http.StatusOK, gin.H{"accepted": false})
		case errors.Is(err, session.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	logger.WithField("turn_id", turnID).Infof("Turn accepted for session %s", req.SessionID)

	sseWriter := utils.NewSSEWriter(c.Writer)

	sseWriter.WriteJSON("status", gin.H{
		"type":      "turn_start",
		"turn_id":   turnID,
		"timestamp": time.Now().Unix(),
	})

	// 写失败（前端断开）不打断本轮：继续 drain 事件让流跑完，
	// 丢掉的只是发给已拆掉视图的帧
	dropped := false
	for ev := range events {
		if dropped {
			continue
		}
		if err := sseWriter.WriteJSON("message", ev); err != nil {
			logger.Warnf("SSE write failed, draining remaining events: %v", err)
			dropped = true
		}
	}

	if !dropped {
		sseWriter.Close()
	}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	// 请求体可以为空，空标题用默认值
	_ = c.ShouldBindJSON(&req)

	sess := h.chatService.NewSession()
	if req.Title != "" {
		h.chatService.RenameSession(sess.ID, req.Title)
		sess.Title = req.Title
	}

	messages, _ := h.chatService.SessionMessages(sess.ID)
	sess.Messages = messages

	c.JSON(http.StatusOK, sess)
}

func (h *ChatHandler) GetSessionList(c *gin.Context) {
	sessions := h.chatService.Sessions()

	list := make([]model.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, model.SessionResponse{
			SessionID:    s.ID,
			Title:        s.Title,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
			MessageCount: len(s.Messages),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":          list,
		"active_session_id": h.chatService.ActiveSessionID(),
	})
}

// GetState 前端整页渲染所需的响应式状态
func (h *ChatHandler) GetState(c *gin.Context) {
	activeID := h.chatService.ActiveSessionID()
	messages, err := h.chatService.SessionMessages(activeID)
	if err != nil {
		messages = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":          h.chatService.Sessions(),
		"active_session_id": activeID,
		"messages":          messages,
		"status":            h.chatService.Status(activeID),
	})
}

func (h *ChatHandler) SwitchSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	messages, err := h.chatService.SwitchSession(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.SwitchSessionResponse{
		SessionID: sessionID,
		Messages:  messages,
	})
}

func (h *ChatHandler) RenameSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req model.RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.chatService.RenameSession(sessionID, req.Title)

	c.JSON(http.StatusOK, gin.H{"message": "Title updated successfully"})
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	h.chatService.DeleteSession(sessionID)

	c.JSON(http.StatusOK, gin.H{
		"message":           "Session deleted successfully",
		"active_session_id": h.chatService.ActiveSessionID(),
	})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	messages, err := h.chatService.SessionMessages(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}
