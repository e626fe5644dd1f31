package storage

import "errors"

var (
	ErrStorageInit   = errors.New("storage initialization failed")
	ErrInvalidData   = errors.New("invalid data")
	ErrFileOperation = errors.New("file operation failed")
)
