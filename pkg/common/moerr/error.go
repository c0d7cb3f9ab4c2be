// Copyright 2024 The Trino-Go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"fmt"
)

const defaultSqlState = "HY000"

const (
	// 0 - 99 is OK. Special handled with static instances, no alloc.
	Ok uint16 = 0

	OkMax uint16 = 99

	// Group 1: internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101
	ErrNYI      uint16 = 20102

	// Group 2: bad arguments
	ErrInvalidArg uint16 = 20203

	// Group 3: invalid input
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state
	ErrInvalidState uint16 = 20400

	// Group End: max value of error code
	ErrEnd uint16 = 65535
)

type moErrorMsgItem struct {
	sqlStates        []string
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	// OK codes are not in this table, they should not leak back to clients.

	ErrStart:    {[]string{defaultSqlState}, "internal error: error code start"},
	ErrInternal: {[]string{defaultSqlState}, "internal error: %s"},
	ErrNYI:      {[]string{defaultSqlState}, "%s is not yet implemented"},

	ErrInvalidArg: {[]string{defaultSqlState}, "invalid argument %s, bad value %v"},

	ErrInvalidInput: {[]string{defaultSqlState}, "invalid input: %s"},

	ErrInvalidState: {[]string{defaultSqlState}, "invalid state %s"},

	ErrEnd: {[]string{defaultSqlState}, "internal error: end of errcode code"},
}

func newError(_ context.Context, code uint16, args ...any) *Error {
	var err *Error
	item, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Errorf("missing error code: %d", code))
	}
	if len(args) == 0 {
		err = &Error{
			code:     code,
			message:  item.errorMsgOrFormat,
			sqlState: item.sqlStates[0],
		}
	} else {
		err = &Error{
			code:     code,
			message:  fmt.Sprintf(item.errorMsgOrFormat, args...),
			sqlState: item.sqlStates[0],
		}
	}
	return err
}

type Error struct {
	code     uint16
	message  string
	sqlState string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) SqlState() string {
	return e.sqlState
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

// Is implements errors.Is so that two moerrs compare by code.
func (e *Error) Is(err error) bool {
	me, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.code == me.code
}

func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}

	me, ok := e.(*Error)
	if !ok {
		// This is not a moerr
		return false
	}
	return me.code == rc
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewInternalErrorNoCtx(msg string, args ...any) *Error {
	return NewInternalError(Context(), msg, args...)
}

func NewNYI(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrNYI, xmsg)
}

func NewNYINoCtx(msg string, args ...any) *Error {
	return NewNYI(Context(), msg, args...)
}

func NewInvalidArg(ctx context.Context, arg string, val any) *Error {
	return newError(ctx, ErrInvalidArg, arg, val)
}

func NewInvalidArgNoCtx(arg string, val any) *Error {
	return NewInvalidArg(Context(), arg, val)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	return NewInvalidInput(Context(), msg, args...)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewInvalidStateNoCtx(msg string, args ...any) *Error {
	return NewInvalidState(Context(), msg, args...)
}

// Context returns the fallback context used by the NoCtx constructors.
func Context() context.Context {
	return context.Background()
}
