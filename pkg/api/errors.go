// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package api

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ValidationError is the cause of all configuration validation failures.
	ValidationError = errors.New("validation failed")

	maskAny = errors.WithStack
)

// InvalidArgumentError is returned when a configuration or request
// refers to something that does not exist or is out of range.
type InvalidArgumentError struct {
	Message string
}

// Error implements the error interface.
func (e InvalidArgumentError) Error() string {
	return e.Message
}

// InvalidArgument creates an InvalidArgumentError with a formatted message.
func InvalidArgument(format string, args ...interface{}) error {
	return maskAny(InvalidArgumentError{Message: fmt.Sprintf(format, args...)})
}

// IsInvalidArgument returns true when the given error is (or wraps) an
// InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	_, ok := errors.Cause(err).(InvalidArgumentError)
	return ok
}
