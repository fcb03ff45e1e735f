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
	lastSensorSentThreshold = time.Second * 15
	// Poll interval used when the connection does not configure one.
	defaultSensorPollInterval = 50
)

type binarySensor struct {
	log          zerolog.Logger
	config       api.Object
	address      api.ObjectAddress
	sender       string
	inputDevice  devices.GPIO
	pin          api.DeviceIndex
	invert       bool
	pollInterval time.Duration
	sendNow      int32
	lastPower    bool
}

// newBinarySensor creates a new binary-sensor object for the given configuration.
func newBinarySensor(sender string, oid api.ObjectID, address api.ObjectAddress, config api.Object, log zerolog.Logger, devService devices.Service) (Object, error) {
	if config.Type != api.ObjectTypeBinarySensor {
		return nil, api.InvalidArgument("Invalid object type '%s'", config.Type)
	}
	conn, pin, err := getSinglePin(oid, config, api.ConnectionNameSensor)
	if err != nil {
		return nil, err
	}
	gpio, err := getGPIOForPin(pin, devService)
	if err != nil {
		return nil, api.InvalidArgument("%s: (pin %s in object %s)", err.Error(), api.ConnectionNameSensor, oid)
	}
	if mqtt, ok := gpio.(devices.MQTT); ok {
		if err := mqtt.SetStateTopic(pin.Index, conn.GetStringConfig(api.ConfigKeyMQTTStateTopic)); err != nil {
			return nil, err
		}
		if err := mqtt.SetCommandTopic(pin.Index, conn.GetStringConfig(api.ConfigKeyMQTTCommandTopic)); err != nil {
			return nil, err
		}
	}
	invert := conn.GetBoolConfig(api.ConfigKeyInvert)
	pollInterval := maxInt(1, conn.GetIntConfigWithDefault(api.ConfigKeyPollInterval, defaultSensorPollInterval))
	return &binarySensor{
		log:          log,
		config:       config,
		address:      address,
		sender:       sender,
		inputDevice:  gpio,
		pin:          pin.Index,
		invert:       invert,
		pollInterval: time.Duration(pollInterval) * time.Millisecond,
	}, nil
}

// Return the type of this object.
func (o *binarySensor) Type() ObjectType {
	return binarySensorTypeInstance
}

// Configure is called once to put the object in the desired state.
func (o *binarySensor) Configure(ctx context.Context) error {
	return o.inputDevice.SetDirection(ctx, o.pin, devices.PinDirectionInput)
}

// Run the object until the given context is cancelled.
func (o *binarySensor) Run(ctx context.Context, requests RequestService, statuses StatusService, moduleID string) error {
	id := string(o.address)
	lastValue := false
	changes := 0
	recentErrors := 0
	log := o.log
	lastSent := time.Now()
	actual := api.Sensor{
		Address: o.address,
		Actual: &api.SensorState{
			Value: 0,
		},
	}
	for {
		// Read state
		value, err := o.inputDevice.Get(ctx, o.pin)
		if err != nil {
			// Try again soon
			if recentErrors == 0 {
				log.Error().Err(err).Msg("Read value failed")
			}
			recentErrors++
			// Report asserted so a broken input shows up on the bench
			value = true
			// Update metrics
			binarySensorReadErrorsTotal.WithLabelValues(id).Inc()
		} else {
			// Read succeeded, invert if needed
			if o.invert {
				value = !value
			}
			// Reset error count
			recentErrors = 0
		}
		force := atomic.CompareAndSwapInt32(&o.sendNow, 1, 0)
		timeoutThreshold := time.Since(lastSent) > lastSensorSentThreshold
		valueChanged := lastValue != value
		if force || valueChanged || changes == 0 || timeoutThreshold {
			// Send feedback data
			log = log.With().
				Bool("value", value).
				Bool("last_value", lastValue).
				Logger()
			if force || valueChanged || changes == 0 {
				log.Debug().Bool("force", force).Msg("change detected")
			}
			// Update metrics
			binarySensorActualGauge.WithLabelValues(id).Set(float64(boolToInt32(value)))
			if valueChanged {
				binarySensorChangesTotal.WithLabelValues(id).Inc()
			}
			actual.Actual.Value = boolToInt32(value)
			if statuses.PublishSensorActual(actual) {
				lastValue = value
				changes++
				lastSent = time.Now()
			} else {
				// Failed to enqueue actual sent.
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

// ProcessPowerMessage acts upons a given power message.
func (o *binarySensor) ProcessPowerMessage(ctx context.Context, m api.PowerState) error {
	enabled := m.GetEnabled()
	if o.lastPower != enabled {
		o.lastPower = enabled
		if m.GetEnabled() {
			atomic.StoreInt32(&o.sendNow, 1)
		}
	}
	return nil
}
