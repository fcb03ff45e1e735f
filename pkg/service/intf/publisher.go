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

// Publisher sends actual state messages of this module to the
// outside world.
type Publisher interface {
	// PublishSensorActual sends the actual state of a binary sensor.
	PublishSensorActual(ctx context.Context, msg api.Sensor) error
	// PublishOutputActual sends the actual state of a binary output.
	PublishOutputActual(ctx context.Context, msg api.Output) error
	// PublishMotorActual sends the actual state of a motor output.
	PublishMotorActual(ctx context.Context, msg api.Motor) error
}
