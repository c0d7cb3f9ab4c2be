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

package config

import (
	"github.com/BurntSushi/toml"

	"github.com/mduggan-starburst/trino/pkg/common/moerr"
	"github.com/mduggan-starburst/trino/pkg/logutil"
)

// Parameters of the join benchmark driver.
type Parameters struct {
	Log logutil.LogConfig `toml:"log"`

	//count of concurrent probe operators. default: 8
	ProbeParallelism int `toml:"probeParallelism"`

	//count of rows on the build side. default: 1 << 16
	BuildRows int `toml:"buildRows"`

	//fraction of build rows the probe side matches, in percent. default: 50
	MatchPercent int `toml:"matchPercent"`

	//whether the simulated join is an outer join. default: true
	BuildOuter bool `toml:"buildOuter"`
}

func (p *Parameters) SetDefaultValues() {
	if p.Log.Level == "" {
		p.Log.Level = "info"
	}
	if p.Log.Format == "" {
		p.Log.Format = "console"
	}
	if p.ProbeParallelism == 0 {
		p.ProbeParallelism = 8
	}
	if p.BuildRows == 0 {
		p.BuildRows = 1 << 16
	}
	if p.MatchPercent == 0 {
		p.MatchPercent = 50
	}
}

// LoadvarsConfigFromFile decodes params from the toml file at configFile.
func LoadvarsConfigFromFile(configFile string, params *Parameters) error {
	if params == nil {
		return moerr.NewInvalidArgNoCtx("params", nil)
	}
	if _, err := toml.DecodeFile(configFile, params); err != nil {
		return moerr.NewInvalidInputNoCtx("decode config file %s: %v", configFile, err)
	}
	return nil
}
