// Copyright 2026 Ewout Prangsma
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

package intf

import (
	"context"

	"github.com/motorbench/BenchWorker/pkg/api"
)

// RequestService accepts requested state changes for the objects of
// this module.
type RequestService interface {
	// Set the requested power state
	SetPowerRequest(context.Context, *api.PowerState) error
	// Set the requested output state
	SetOutputRequest(context.Context, *api.Output) error
	// Set the requested motor state
	SetMotorRequest(context.Context, *api.Motor) error
}

type GetRequestService interface {
	GetRequestService() RequestService
}
