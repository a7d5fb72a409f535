package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrUnauthorized      = errors.New("session is not authenticated")
	ErrChatNotFound      = errors.New("chat not found")
	ErrAnswerService     = errors.New("answer service failed")
)
