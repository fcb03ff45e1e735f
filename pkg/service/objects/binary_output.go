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

	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/devices"
)

type binaryOutput struct {
	log          zerolog.Logger
	config       api.Object
	address      api.ObjectAddress
	sender       string
	outputDevice devices.GPIO
	pin          api.DeviceIndex
	invert       bool
}

// newBinaryOutput creates a new binary-output object for the given configuration.
func newBinaryOutput(sender string, oid api.ObjectID, address api.ObjectAddress, config api.Object, log zerolog.Logger, devService devices.Service) (Object, error) {
	if config.Type != api.ObjectTypeBinaryOutput {
		return nil, api.InvalidArgument("Invalid object type '%s'", config.Type)
	}
	conn, pin, err := getSinglePin(oid, config, api.ConnectionNameOutput)
	if err != nil {
		return nil, err
	}
	gpio, err := getGPIOForPin(pin, devService)
	if err != nil {
		return nil, api.InvalidArgument("%s: (pin %s in object %s)", err.Error(), api.ConnectionNameOutput, oid)
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
	return &binaryOutput{
		log:          log,
		config:       config,
		address:      address,
		sender:       sender,
		outputDevice: gpio,
		pin:          pin.Index,
		invert:       invert,
	}, nil
}

// Return the type of this object.
func (o *binaryOutput) Type() ObjectType {
	return binaryOutputTypeInstance
}

// Configure is called once to put the object in the desired state.
// The output is switched off.
func (o *binaryOutput) Configure(ctx context.Context) error {
	if err := o.outputDevice.SetDirection(ctx, o.pin, devices.PinDirectionOutput); err != nil {
		return err
	}
	if err := o.outputDevice.Set(ctx, o.pin, o.pinValue(false)); err != nil {
		return err
	}
	return nil
}

// Run the object until the given context is cancelled.
func (o *binaryOutput) Run(ctx context.Context, requests RequestService, statuses StatusService, moduleID string) error {
	// Nothing to do here
	<-ctx.Done()
	return nil
}

// ProcessMessage acts upons a given request.
func (o *binaryOutput) ProcessMessage(ctx context.Context, r api.Output) error {
	value := r.GetRequest().GetValue()
	log := o.log.With().Int32("value", value).Logger()
	log.Debug().Msg("got request")
	if err := o.outputDevice.Set(ctx, o.pin, o.pinValue(int32ToBool(value))); err != nil {
		log.Debug().Err(err).Msg("GPIO.set failed")
		return err
	}
	return nil
}

// ProcessPowerMessage acts upons a given power message.
func (o *binaryOutput) ProcessPowerMessage(ctx context.Context, m api.PowerState) error {
	return nil
}

func (o *binaryOutput) pinValue(value bool) bool {
	if o.invert {
		return !value
	}
	return value
}
