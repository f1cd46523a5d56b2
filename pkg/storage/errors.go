package storage

import "errors"

var (
	ErrNotFound   = errors.New("blob not found")
	ErrExists     = errors.New("blob already written")
	ErrInvalidKey = errors.New("invalid storage key")
	ErrDisabled   = errors.New("blob storage not configured")
)
