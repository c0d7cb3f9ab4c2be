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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	err := NewInvalidStateNoCtx("counter %s already read", "probe")
	require.Equal(t, ErrInvalidState, err.ErrorCode())
	require.Equal(t, "invalid state counter probe already read", err.Error())
	require.Equal(t, defaultSqlState, err.SqlState())
	require.False(t, err.Succeeded())
}

func TestIsMoErrCode(t *testing.T) {
	require.True(t, IsMoErrCode(nil, Ok))
	require.False(t, IsMoErrCode(nil, ErrInternal))

	err := NewInvalidArg(context.Background(), "outerFactoryCount", 2)
	require.True(t, IsMoErrCode(err, ErrInvalidArg))
	require.False(t, IsMoErrCode(err, ErrInvalidState))

	require.False(t, IsMoErrCode(errors.New("plain"), ErrInternal))
}

func TestErrorsIs(t *testing.T) {
	err := NewInternalErrorNoCtx("boom")
	require.True(t, errors.Is(err, NewInternalErrorNoCtx("other")))
	require.False(t, errors.Is(err, NewInvalidInputNoCtx("other")))
}
