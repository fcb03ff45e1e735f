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

package devices

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/motorbench/BenchWorker/pkg/api"
)

// localPWM drives the hardware PWM pins of the worker itself.
// Outputs use BCM numbering. Only the hardware PWM pins 12, 13, 18
// and 19 are valid.
type localPWM struct {
	mutex    sync.Mutex
	onActive func()
	config   api.Device
	opened   bool
	states   map[api.DeviceIndex]pwmState
}

const (
	localPWMMaxValue = 255
	// DutyCycle works with cycle length equal to the max value, so a
	// duty of localPWMMaxValue keeps the output high for the full cycle.
	localPWMCycleLen = localPWMMaxValue
	// Cycles per second of the modulated output.
	localPWMCycleFrequency = 250
)

// newLocalPWM creates a PWM instance for the hardware PWM pins locally
// on the worker.
func newLocalPWM(config api.Device, onActive func()) (PWM, error) {
	if config.Type != api.DeviceTypePWM {
		return nil, api.InvalidArgument("Invalid device type '%s'", string(config.Type))
	}
	return &localPWM{
		onActive: onActive,
		config:   config,
		states:   make(map[api.DeviceIndex]pwmState),
	}, nil
}

// Configure is called once to put the device in the desired state.
func (d *localPWM) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if err := rpio.Open(); err != nil {
		return errors.Wrap(err, "rpio.Open failed")
	}
	d.opened = true
	d.states = make(map[api.DeviceIndex]pwmState)
	d.onActive()
	return nil
}

// Close brings the device back to a safe state.
func (d *localPWM) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.opened {
		// Pull all modulated pins low
		for index := range d.states {
			pin := rpio.Pin(index)
			pin.Mode(rpio.Output)
			pin.Low()
		}
		d.opened = false
		if err := rpio.Close(); err != nil {
			return errors.Wrap(err, "rpio.Close failed")
		}
	}
	d.onActive()
	return nil
}

// PWMPinCount returns the number of PWM output pins of the device
func (d *localPWM) PWMPinCount() int {
	return 26
}

// MaxPWMValue returns the maximum valid value for onValue or offValue.
func (d *localPWM) MaxPWMValue() uint32 {
	return localPWMMaxValue
}

// SetPWM the output at given index (1...) to the given value.
// The on value (phase offset) is not supported, the off value alone
// drives the duty cycle.
func (d *localPWM) SetPWM(ctx context.Context, output api.DeviceIndex, onValue, offValue uint32, enabled bool) error {
	if err := d.checkPin(output); err != nil {
		return err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.opened {
		return errors.New("device is not configured")
	}
	duty := offValue
	if duty > localPWMMaxValue {
		duty = localPWMMaxValue
	}
	if !enabled {
		duty = 0
	}
	pin := rpio.Pin(output)
	pin.Mode(rpio.Pwm)
	pin.Freq(localPWMCycleFrequency * localPWMCycleLen)
	pin.DutyCycle(duty, localPWMCycleLen)
	d.states[output] = pwmState{
		OnValue:  onValue,
		OffValue: offValue,
		Enabled:  enabled,
	}
	d.onActive()
	return nil
}

// GetPWM the output at given index (1...)
// Returns onValue,offValue,enabled,error
func (d *localPWM) GetPWM(ctx context.Context, output api.DeviceIndex) (uint32, uint32, bool, error) {
	if err := d.checkPin(output); err != nil {
		return 0, 0, false, err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	state, found := d.states[output]
	if !found {
		return 0, 0, false, nil
	}
	return state.OnValue, state.OffValue, state.Enabled, nil
}

// checkPin returns an error unless the given index is a hardware PWM pin.
func (d *localPWM) checkPin(output api.DeviceIndex) error {
	switch output {
	case 12, 13, 18, 19:
		return nil
	}
	return errors.Wrapf(InvalidPinError, "Pin must be one of 12, 13, 18, 19, got %d", output)
}
