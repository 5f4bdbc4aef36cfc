package errors

import "fmt"

var (
	ErrEmptyName            = fmt.Errorf("empty name")
	ErrInvalidNameSyntax    = fmt.Errorf("invalid name syntax")
	ErrNameExists           = fmt.Errorf("name already exists")
	ErrInvalidCommandSyntax = fmt.Errorf("invalid command syntax")
	ErrLivenessTimeout      = fmt.Errorf("peer did not answer the liveness probe")
	ErrTransport            = fmt.Errorf("transport error")
	ErrLineTooLong          = fmt.Errorf("%w: line too long", ErrTransport)
	ErrPeerClosed           = fmt.Errorf("peer closed the stream")
	ErrSessionClosed        = fmt.Errorf("session closed")
	ErrConfigLoad           = fmt.Errorf("config load error")
	ErrInvalidReplacement   = fmt.Errorf("replacement must be a single character")
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrEmptyWords           = fmt.Errorf("no words have been found")
)
