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

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
)

// Status is a point-in-time snapshot of the module, served to the
// SSH console and the HTTP status endpoint.
type Status struct {
	ModuleID            string       `json:"module-id"`
	ProgramVersion      string       `json:"program-version"`
	StartedAt           time.Time    `json:"started-at"`
	ConfigHash          string       `json:"config-hash,omitempty"`
	ConfiguredDevices   []string     `json:"configured-devices,omitempty"`
	UnconfiguredDevices []string     `json:"unconfigured-devices,omitempty"`
	ConfiguredObjects   []string     `json:"configured-objects,omitempty"`
	UnconfiguredObjects []string     `json:"unconfigured-objects,omitempty"`
	Sensors             []api.Sensor `json:"sensors,omitempty"`
	Outputs             []api.Output `json:"outputs,omitempty"`
	Motors              []api.Motor  `json:"motors,omitempty"`
}

// statusCache implements intf.Publisher and retains the last actual
// state of every object.
type statusCache struct {
	mutex   sync.Mutex
	sensors map[api.ObjectAddress]api.Sensor
	outputs map[api.ObjectAddress]api.Output
	motors  map[api.ObjectAddress]api.Motor
}

var _ intf.Publisher = (*statusCache)(nil)

func newStatusCache() *statusCache {
	return &statusCache{
		sensors: make(map[api.ObjectAddress]api.Sensor),
		outputs: make(map[api.ObjectAddress]api.Output),
		motors:  make(map[api.ObjectAddress]api.Motor),
	}
}

// PublishSensorActual retains the actual state of a binary sensor.
func (c *statusCache) PublishSensorActual(ctx context.Context, msg api.Sensor) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sensors[msg.Address] = msg
	return nil
}

// PublishOutputActual retains the actual state of a binary output.
func (c *statusCache) PublishOutputActual(ctx context.Context, msg api.Output) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.outputs[msg.Address] = msg
	return nil
}

// PublishMotorActual retains the actual state of a motor output.
func (c *statusCache) PublishMotorActual(ctx context.Context, msg api.Motor) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.motors[msg.Address] = msg
	return nil
}

// Reset drops all retained states.
// Called when a new worker starts, since its configuration may no
// longer contain objects seen before.
func (c *statusCache) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sensors = make(map[api.ObjectAddress]api.Sensor)
	c.outputs = make(map[api.ObjectAddress]api.Output)
	c.motors = make(map[api.ObjectAddress]api.Motor)
}

// Snapshot returns the retained states, sorted by address.
func (c *statusCache) Snapshot() (sensors []api.Sensor, outputs []api.Output, motors []api.Motor) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	sensors = lo.Values(c.sensors)
	sort.Slice(sensors, func(i, j int) bool { return sensors[i].Address < sensors[j].Address })
	outputs = lo.Values(c.outputs)
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Address < outputs[j].Address })
	motors = lo.Values(c.motors)
	sort.Slice(motors, func(i, j int) bool { return motors[i].Address < motors[j].Address })
	return sensors, outputs, motors
}
