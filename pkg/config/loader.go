//    Copyright 2025 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/motorbench/BenchWorker/pkg/api"
)

// Load reads, parses and validates the module configuration at the
// given path. The returned hash identifies the file content, such that
// callers can ignore reloads of an unchanged configuration.
func Load(path string) (*api.ModuleConfiguration, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to read configuration from '%s'", path)
	}
	var conf api.ModuleConfiguration
	if err := yaml.Unmarshal(content, &conf); err != nil {
		return nil, "", errors.Wrapf(err, "failed to parse configuration from '%s'", path)
	}
	if err := conf.Validate(); err != nil {
		return nil, "", errors.Wrapf(err, "invalid configuration in '%s'", path)
	}
	sum := sha256.Sum256(content)
	return &conf, hex.EncodeToString(sum[:]), nil
}
