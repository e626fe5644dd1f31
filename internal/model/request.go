package model

type SubmitRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type RenameSessionRequest struct {
	Title string `json:"title" binding:"required"`
}
