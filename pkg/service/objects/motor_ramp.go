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
	// Step size used when the motor connection does not configure one.
	defaultRampStep = 1
	// Delay (ms) after each duty step when not configured.
	defaultRampStepDelay = 50
	// Trigger poll interval (ms) when not configured.
	defaultRampPollInterval = 1
	// How long between unforced status publishes while idle.
	lastRampSentThreshold = time.Second * 15
)

// motorRamp drives a motor output through one full duty sweep, 0 up to
// 255 and back down to 0, each time its trigger input is seen asserted.
// A cycle, once started, always runs to completion. The trigger is only
// sampled between cycles.
type motorRamp struct {
	log     zerolog.Logger
	config  api.Object
	address api.ObjectAddress
	sender  string
	trigger struct {
		device devices.GPIO
		pin    api.DeviceIndex
		invert bool
	}
	motor struct {
		device devices.PWM
		index  api.DeviceIndex
	}
	stepSize     int
	stepDelay    time.Duration
	pollInterval time.Duration
	sendNow      int32
	state        api.RampState
	currentDuty  int
}

// newMotorRamp creates a new motor-ramp object for the given configuration.
func newMotorRamp(sender string, oid api.ObjectID, address api.ObjectAddress, config api.Object, log zerolog.Logger, devService devices.Service) (Object, error) {
	if config.Type != api.ObjectTypeMotorRamp {
		return nil, api.InvalidArgument("Invalid object type '%s'", config.Type)
	}
	triggerConn, triggerPin, err := getSinglePin(oid, config, api.ConnectionNameTrigger)
	if err != nil {
		return nil, err
	}
	triggerDev, err := getGPIOForPin(triggerPin, devService)
	if err != nil {
		return nil, api.InvalidArgument("%s: (pin %s in object %s)", err.Error(), api.ConnectionNameTrigger, oid)
	}
	motorConn, motorPin, err := getSinglePin(oid, config, api.ConnectionNameMotor)
	if err != nil {
		return nil, err
	}
	motorDev, err := getPWMForPin(motorPin, devService)
	if err != nil {
		return nil, api.InvalidArgument("%s: (connection %s in object %s)", err.Error(), api.ConnectionNameMotor, oid)
	}
	if mqtt, ok := triggerDev.(devices.MQTT); ok {
		if err := mqtt.SetStateTopic(triggerPin.Index, triggerConn.GetStringConfig(api.ConfigKeyMQTTStateTopic)); err != nil {
			return nil, err
		}
		if err := mqtt.SetCommandTopic(triggerPin.Index, triggerConn.GetStringConfig(api.ConfigKeyMQTTCommandTopic)); err != nil {
			return nil, err
		}
	}
	if mqtt, ok := motorDev.(devices.MQTT); ok {
		if err := mqtt.SetStateTopic(motorPin.Index, motorConn.GetStringConfig(api.ConfigKeyMQTTStateTopic)); err != nil {
			return nil, err
		}
		if err := mqtt.SetCommandTopic(motorPin.Index, motorConn.GetStringConfig(api.ConfigKeyMQTTCommandTopic)); err != nil {
			return nil, err
		}
	}
	o := &motorRamp{
		log:     log,
		config:  config,
		address: address,
		sender:  sender,
		state:   api.RampStateIdle,
	}
	o.trigger.device = triggerDev
	o.trigger.pin = triggerPin.Index
	o.trigger.invert = triggerConn.GetBoolConfig(api.ConfigKeyInvert)
	o.motor.device = motorDev
	o.motor.index = motorPin.Index
	o.stepSize = minInt(maxDuty, maxInt(1, motorConn.GetIntConfigWithDefault(api.ConfigKeyStep, defaultRampStep)))
	o.stepDelay = time.Duration(maxInt(0, motorConn.GetIntConfigWithDefault(api.ConfigKeyStepDelay, defaultRampStepDelay))) * time.Millisecond
	o.pollInterval = time.Duration(maxInt(1, triggerConn.GetIntConfigWithDefault(api.ConfigKeyPollInterval, defaultRampPollInterval))) * time.Millisecond
	return o, nil
}

// Return the type of this object.
func (o *motorRamp) Type() ObjectType {
	return motorRampTypeInstance
}

// Configure is called once to put the object in the desired state.
// The trigger pin becomes an input and the motor is stopped.
func (o *motorRamp) Configure(ctx context.Context) error {
	if err := o.trigger.device.SetDirection(ctx, o.trigger.pin, devices.PinDirectionInput); err != nil {
		return err
	}
	o.state = api.RampStateIdle
	o.currentDuty = 0
	if err := o.writeDuty(ctx, 0); err != nil {
		return err
	}
	return nil
}

// Run the object until the given context is cancelled.
func (o *motorRamp) Run(ctx context.Context, requests RequestService, statuses StatusService, moduleID string) error {
	defer o.log.Debug().Msg("motorRamp.Run terminated")
	id := string(o.address)
	log := o.log
	recentErrors := 0
	lastSent := time.Time{}
	for {
		// Sample the trigger.
		// This is the only point where it is read, so a cycle in
		// progress is never cut short by the trigger changing.
		value, err := o.trigger.device.Get(ctx, o.trigger.pin)
		if err != nil {
			if recentErrors == 0 {
				log.Error().Err(err).Msg("Read trigger failed")
			}
			recentErrors++
			// A failing trigger must not start a cycle
			value = false
			// Update metrics
			motorRampTriggerReadErrorsTotal.WithLabelValues(id).Inc()
		} else {
			// Read succeeded, invert if needed
			if o.trigger.invert {
				value = !value
			}
			recentErrors = 0
		}

		if value {
			if err := o.runCycle(ctx, statuses); err != nil {
				// Cycle was interrupted by shutdown
				return nil
			}
		}

		// Publish idle state when asked for, or when the last publish
		// was too long ago.
		force := atomic.CompareAndSwapInt32(&o.sendNow, 1, 0)
		if force || time.Since(lastSent) > lastRampSentThreshold {
			if statuses.PublishMotorActual(o.actualMessage()) {
				lastSent = time.Now()
			} else {
				// Failed to enqueue actual.
				// Force next update
				atomic.StoreInt32(&o.sendNow, 1)
			}
		}

		// Wait a bit
		select {
		case <-ctx.Done():
			// Context cancelled
			return nil
		case <-time.After(o.pollInterval):
			// Continue
		}
	}
}

// runCycle performs one complete ramp cycle: duty 0 up to 255, then
// 255 back down to 0, writing every step.
// An error is returned only when the context is cancelled mid-cycle.
// In that case the motor is stopped on a best-effort basis.
func (o *motorRamp) runCycle(ctx context.Context, statuses StatusService) error {
	id := string(o.address)
	o.log.Debug().Msg("Trigger asserted, starting ramp cycle")
	motorRampCyclesStartedTotal.WithLabelValues(id).Inc()
	started := time.Now()

	o.setState(statuses, api.RampStateRampingUp)
	if err := o.sweep(ctx, 0, maxDuty); err != nil {
		o.stopMotor()
		return err
	}
	o.setState(statuses, api.RampStateRampingDown)
	if err := o.sweep(ctx, maxDuty, 0); err != nil {
		o.stopMotor()
		return err
	}
	o.setState(statuses, api.RampStateIdle)
	motorRampCyclesCompletedTotal.WithLabelValues(id).Inc()
	o.log.Debug().
		Dur("duration", time.Since(started)).
		Msg("Ramp cycle completed")
	return nil
}

// sweep moves the duty from one bound to the other, writing every value
// on the way and waiting the step delay after each write.
// The last step is clamped so the target bound is always written exactly.
func (o *motorRamp) sweep(ctx context.Context, from, to int) error {
	id := string(o.address)
	duty := from
	for {
		if err := o.writeDuty(ctx, duty); err != nil {
			o.log.Warn().
				Err(err).
				Int("duty", duty).
				Msg("Set motor output failed")
			motorRampWriteErrorsTotal.WithLabelValues(id).Inc()
		} else {
			o.currentDuty = duty
			motorRampDutyGauge.WithLabelValues(id).Set(float64(duty))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.stepDelay):
			// Continue
		}
		if duty == to {
			return nil
		}
		if from < to {
			duty = minInt(duty+o.stepSize, to)
		} else {
			duty = maxInt(duty-o.stepSize, to)
		}
	}
}

// writeDuty writes the given 8-bit duty value, scaled to the native
// range of the motor output.
func (o *motorRamp) writeDuty(ctx context.Context, duty int) error {
	scaled := scaleDuty(uint32(duty), o.motor.device.MaxPWMValue())
	return o.motor.device.SetPWM(ctx, o.motor.index, 0, scaled, true)
}

// stopMotor issues a best-effort duty 0 write with a fresh context.
// Used when a cycle is interrupted by shutdown.
func (o *motorRamp) stopMotor() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.writeDuty(ctx, 0); err != nil {
		o.log.Warn().Err(err).Msg("Failed to stop motor output")
	} else {
		o.currentDuty = 0
	}
	o.setState(nil, api.RampStateIdle)
}

// setState records the new ramp state and publishes it.
// A nil statuses skips the publish (used during shutdown).
func (o *motorRamp) setState(statuses StatusService, state api.RampState) {
	o.state = state
	motorRampStateGauge.WithLabelValues(string(o.address)).Set(rampStateValue(state))
	if statuses != nil {
		statuses.PublishMotorActual(o.actualMessage())
	}
}

// actualMessage builds the status message for the current duty and state.
func (o *motorRamp) actualMessage() api.Motor {
	return api.Motor{
		Address: o.address,
		Actual: &api.MotorState{
			Duty:  int32(o.currentDuty),
			State: o.state,
		},
	}
}

// rampStateValue maps a ramp state on a metric value.
func rampStateValue(state api.RampState) float64 {
	switch state {
	case api.RampStateRampingUp:
		return 1
	case api.RampStateRampingDown:
		return 2
	default:
		return 0
	}
}

// ProcessPowerMessage acts upons a given power message.
func (o *motorRamp) ProcessPowerMessage(ctx context.Context, m api.PowerState) error {
	if m.GetEnabled() {
		atomic.StoreInt32(&o.sendNow, 1)
	}
	return nil
}
