package storage

import (
	"wumen-backend/internal/model"
)

// Store 会话快照的持久化接口。整份会话列表按 key 整体读写，
// 后写覆盖先写，不做版本合并。
type Store interface {
	Load(key string) ([]model.Session, error)
	Save(key string, sessions []model.Session) error

	Init() error
	Close() error
	Backup() error
}
