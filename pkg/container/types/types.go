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

package types

import "fmt"

// T is the type oid of a column.
type T uint8

const (
	T_any T = 0

	T_bool T = 10

	T_int8   T = 20
	T_int16  T = 21
	T_int32  T = 22
	T_int64  T = 23
	T_uint8  T = 24
	T_uint16 T = 25
	T_uint32 T = 26
	T_uint64 T = 27

	T_float32 T = 30
	T_float64 T = 31

	T_date     T = 40
	T_datetime T = 41

	T_char    T = 50
	T_varchar T = 51
)

// Type describes one column of a row batch.
type Type struct {
	Oid   T
	Size  int32
	Width int32
	Scale int32
}

func New(oid T) Type {
	return Type{Oid: oid, Size: oid.FixedSize()}
}

func (t T) ToType() Type {
	return New(t)
}

func (t T) FixedSize() int32 {
	switch t {
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32, T_date:
		return 4
	case T_int64, T_uint64, T_float64, T_datetime:
		return 8
	default:
		// varlena types have no fixed size
		return -1
	}
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_date:
		return "DATE"
	case T_datetime:
		return "DATETIME"
	case T_char:
		return "CHAR"
	case T_varchar:
		return "VARCHAR"
	}
	return fmt.Sprintf("unexpected type: %d", t)
}

func (t Type) String() string {
	return t.Oid.String()
}
