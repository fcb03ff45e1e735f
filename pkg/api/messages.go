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

// PowerState is the requested or actual power state of the bench.
type PowerState struct {
	Enabled bool `json:"enabled"`
}

// GetEnabled returns the enabled field, false when nil.
func (m *PowerState) GetEnabled() bool {
	if m == nil {
		return false
	}
	return m.Enabled
}

// SensorState holds the value of a binary sensor.
// Value is 0 (not asserted) or 1 (asserted).
type SensorState struct {
	Value int32 `json:"value"`
}

// GetValue returns the value field, 0 when nil.
func (m *SensorState) GetValue() int32 {
	if m == nil {
		return 0
	}
	return m.Value
}

// Sensor is a status message of a binary sensor.
type Sensor struct {
	Address ObjectAddress `json:"address"`
	Actual  *SensorState  `json:"actual,omitempty"`
}

// GetAddress returns the address field, empty when nil.
func (m *Sensor) GetAddress() ObjectAddress {
	if m == nil {
		return ""
	}
	return m.Address
}

// GetActual returns the actual field, nil when absent.
func (m *Sensor) GetActual() *SensorState {
	if m == nil {
		return nil
	}
	return m.Actual
}

// OutputState holds the value of a binary output.
// Value is 0 (off) or 1 (on).
type OutputState struct {
	Value int32 `json:"value"`
}

// GetValue returns the value field, 0 when nil.
func (m *OutputState) GetValue() int32 {
	if m == nil {
		return 0
	}
	return m.Value
}

// Output is a request or status message of a binary output.
type Output struct {
	Address ObjectAddress `json:"address"`
	Request *OutputState  `json:"request,omitempty"`
	Actual  *OutputState  `json:"actual,omitempty"`
}

// GetAddress returns the address field, empty when nil.
func (m *Output) GetAddress() ObjectAddress {
	if m == nil {
		return ""
	}
	return m.Address
}

// GetRequest returns the request field, nil when absent.
func (m *Output) GetRequest() *OutputState {
	if m == nil {
		return nil
	}
	return m.Request
}

// GetActual returns the actual field, nil when absent.
func (m *Output) GetActual() *OutputState {
	if m == nil {
		return nil
	}
	return m.Actual
}

// RampState is the state of a motor duty ramp.
type RampState string

const (
	// RampStateIdle: no ramp in progress, duty 0.
	RampStateIdle RampState = "IDLE"
	// RampStateRampingUp: duty is increasing towards the maximum.
	RampStateRampingUp RampState = "RAMPING_UP"
	// RampStateRampingDown: duty is decreasing towards 0.
	RampStateRampingDown RampState = "RAMPING_DOWN"
)

// MotorState holds the duty (0..255) and ramp state of a motor output.
type MotorState struct {
	Duty  int32     `json:"duty"`
	State RampState `json:"state,omitempty"`
}

// GetDuty returns the duty field, 0 when nil.
func (m *MotorState) GetDuty() int32 {
	if m == nil {
		return 0
	}
	return m.Duty
}

// GetState returns the state field, empty when nil.
func (m *MotorState) GetState() RampState {
	if m == nil {
		return ""
	}
	return m.State
}

// Motor is a request or status message of a motor output.
type Motor struct {
	Address ObjectAddress `json:"address"`
	Request *MotorState   `json:"request,omitempty"`
	Actual  *MotorState   `json:"actual,omitempty"`
}

// GetAddress returns the address field, empty when nil.
func (m *Motor) GetAddress() ObjectAddress {
	if m == nil {
		return ""
	}
	return m.Address
}

// GetRequest returns the request field, nil when absent.
func (m *Motor) GetRequest() *MotorState {
	if m == nil {
		return nil
	}
	return m.Request
}

// GetActual returns the actual field, nil when absent.
func (m *Motor) GetActual() *MotorState {
	if m == nil {
		return nil
	}
	return m.Actual
}
