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

package execution

import "fmt"

// Lifespan identifies the execution partition a driver belongs to.
// The zero value is the task-wide lifespan, meaning the whole task runs
// unpartitioned. Lifespans compare with ==.
type Lifespan struct {
	grouped bool
	groupID int32
}

func TaskWide() Lifespan {
	return Lifespan{}
}

// DriverGroup returns the lifespan of one partition of grouped execution.
func DriverGroup(id int32) Lifespan {
	return Lifespan{grouped: true, groupID: id}
}

func (l Lifespan) IsTaskWide() bool {
	return !l.grouped
}

func (l Lifespan) GroupID() int32 {
	return l.groupID
}

func (l Lifespan) String() string {
	if !l.grouped {
		return "TaskWide"
	}
	return fmt.Sprintf("Group%d", l.groupID)
}
