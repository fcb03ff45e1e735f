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

package objects

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/devices"
)

const (
	// Maximum 8-bit duty value of a motor output.
	maxDuty = 255
	// Step size used when the connection does not configure one.
	defaultMotorStep = 5
	// Delay (ms) after each duty step when the connection does not configure one.
	defaultMotorStepDelay = 50
)

type motor struct {
	log     zerolog.Logger
	config  api.Object
	address api.ObjectAddress
	sender  string
	output  struct {
		device    devices.PWM
		index     api.DeviceIndex
		stepSize  int
		stepDelay time.Duration
	}
	sendActualNeeded int32
	currentDuty      uint32
	targetDuty       uint32
}

// newMotor creates a new motor object for the given configuration.
func newMotor(sender string, oid api.ObjectID, address api.ObjectAddress, config api.Object, log zerolog.Logger, devService devices.Service) (Object, error) {
	if config.Type != api.ObjectTypeMotor {
		return nil, api.InvalidArgument("Invalid object type '%s'", config.Type)
	}
	conn, pin, err := getSinglePin(oid, config, api.ConnectionNameMotor)
	if err != nil {
		return nil, err
	}
	dev, err := getPWMForPin(pin, devService)
	if err != nil {
		return nil, api.InvalidArgument("%s: (connection %s in object %s)", err.Error(), api.ConnectionNameMotor, oid)
	}
	if mqtt, ok := dev.(devices.MQTT); ok {
		if err := mqtt.SetStateTopic(pin.Index, conn.GetStringConfig(api.ConfigKeyMQTTStateTopic)); err != nil {
			return nil, err
		}
		if err := mqtt.SetCommandTopic(pin.Index, conn.GetStringConfig(api.ConfigKeyMQTTCommandTopic)); err != nil {
			return nil, err
		}
	}
	stepSize := maxInt(1, conn.GetIntConfigWithDefault(api.ConfigKeyStep, defaultMotorStep))
	stepDelay := maxInt(1, conn.GetIntConfigWithDefault(api.ConfigKeyStepDelay, defaultMotorStepDelay))
	m := &motor{
		log:     log,
		config:  config,
		address: address,
		sender:  sender,
	}
	m.output.device = dev
	m.output.index = pin.Index
	m.output.stepSize = stepSize
	m.output.stepDelay = time.Duration(stepDelay) * time.Millisecond
	return m, nil
}

// Return the type of this object.
func (o *motor) Type() ObjectType {
	return motorTypeInstance
}

// Configure is called once to put the object in the desired state.
// The motor is stopped.
func (o *motor) Configure(ctx context.Context) error {
	atomic.StoreUint32(&o.targetDuty, 0)
	o.currentDuty = 0
	atomic.StoreInt32(&o.sendActualNeeded, 1)
	if err := o.output.device.SetPWM(ctx, o.output.index, 0, 0, false); err != nil {
		return err
	}
	return nil
}

// Run the object until the given context is cancelled.
func (o *motor) Run(ctx context.Context, requests RequestService, statuses StatusService, moduleID string) error {
	defer o.log.Debug().Msg("motor.Run terminated")
	// Ensure we initialize directly after start
	atomic.StoreInt32(&o.sendActualNeeded, 1)
	lastSendActual := time.Now()
	for {
		targetDuty := atomic.LoadUint32(&o.targetDuty)
		if targetDuty != o.currentDuty {
			// Make current duty closer to target duty
			step := minInt(o.output.stepSize, absInt(int(targetDuty)-int(o.currentDuty)))
			var nextDuty uint32
			if o.currentDuty < targetDuty {
				nextDuty = o.currentDuty + uint32(step)
			} else {
				nextDuty = o.currentDuty - uint32(step)
			}
			scaled := scaleDuty(nextDuty, o.output.device.MaxPWMValue())
			if err := o.output.device.SetPWM(ctx, o.output.index, 0, scaled, nextDuty > 0); err != nil {
				// oops
				o.log.Warn().
					Err(err).
					Uint32("duty", nextDuty).
					Msg("Set motor output failed")
			} else {
				o.currentDuty = nextDuty
				motorActualGauge.WithLabelValues(string(o.address)).Set(float64(nextDuty))
				o.log.Debug().
					Uint32("duty", nextDuty).
					Msg("Set motor output succeeded")
			}
		} else {
			// Requested duty reached
			// Send actual message (if needed)
			sendNeeded := atomic.CompareAndSwapInt32(&o.sendActualNeeded, 1, 0)
			if sendNeeded {
				o.log.Debug().
					Uint32("duty", o.currentDuty).
					Msg("Motor reached duty, sending actual")
			} else if time.Since(lastSendActual) > time.Second*5 {
				// We need to keep sending actual status on regular interval
				sendNeeded = true
			}
			if sendNeeded {
				lastSendActual = time.Now()
				statuses.PublishMotorActual(api.Motor{
					Address: o.address,
					Request: &api.MotorState{
						Duty: int32(targetDuty),
					},
					Actual: &api.MotorState{
						Duty: int32(o.currentDuty),
					},
				})
			}
		}
		select {
		case <-ctx.Done():
			// Context canceled
			return nil
		case <-time.After(o.output.stepDelay):
			// Continue
		}
	}
}

// ProcessMessage acts upons a given request.
func (o *motor) ProcessMessage(ctx context.Context, r api.Motor) error {
	duty := int(r.GetRequest().GetDuty())
	duty = maxInt(0, minInt(maxDuty, duty))
	oldTargetDuty := atomic.SwapUint32(&o.targetDuty, uint32(duty))
	if oldTargetDuty != uint32(duty) {
		atomic.StoreInt32(&o.sendActualNeeded, 1)
		log := o.log.With().Int("duty", duty).Logger()
		log.Debug().Msg("got new motor request")
	}
	return nil
}

// ProcessPowerMessage acts upons a given power message.
// Losing power stops the motor.
func (o *motor) ProcessPowerMessage(ctx context.Context, m api.PowerState) error {
	if !m.GetEnabled() {
		atomic.StoreUint32(&o.targetDuty, 0)
	}
	atomic.StoreInt32(&o.sendActualNeeded, 1)
	return nil
}
