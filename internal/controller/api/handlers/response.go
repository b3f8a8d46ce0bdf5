package handlers

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Error is the body of every API error response. It implements
// huma.StatusError so huma serializes it directly.
type Error struct {
	status int
	OK     bool   `json:"ok"`
	Err    string `json:"error"`
}

func (e *Error) Error() string  { return e.Err }
func (e *Error) GetStatus() int { return e.status }

// InitErrors swaps huma's error factory so error responses share the
// {ok, error} envelope with the success bodies below.
func InitErrors() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		for _, err := range errs {
			msg = fmt.Sprintf("%s: %s", msg, err)
		}
		return &Error{status: status, Err: msg}
	}
}

// Body is the {ok, data} success envelope.
type Body[T any] struct {
	OK   bool `json:"ok"`
	Data T    `json:"data"`
}

// Reply wraps a success body for huma.
type Reply[T any] struct {
	Body Body[T]
}

// OK wraps data in the success envelope.
func OK[T any](data T) *Reply[T] {
	return &Reply[T]{Body: Body[T]{OK: true, Data: data}}
}

// MsgReply is the success envelope for operations with no data to
// return beyond an acknowledgement.
type MsgReply struct {
	Body struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
}

// Msg acknowledges an operation with a human-readable message.
func Msg(message string) *MsgReply {
	var r MsgReply
	r.Body.OK = true
	r.Body.Message = message
	return &r
}
