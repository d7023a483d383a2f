package errors

import "fmt"

var (
	ErrUserNotFound      = fmt.Errorf("user not found")
	ErrUserAlreadyExists = fmt.Errorf("user already exists")
	ErrNotRegistered     = fmt.Errorf("connection has no registered identity")
	ErrSendBufferFull    = fmt.Errorf("send buffer full")
	ErrConnClosed        = fmt.Errorf("connection closed")
	ErrWorkerPanic       = fmt.Errorf("worker panic")
)
