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

package devices

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/bridge"
)

// Service contains the API that is exposed by the device service.
type Service interface {
	// DeviceByID returns the device with given ID.
	// Return false if not found
	DeviceByID(id api.DeviceID) (Device, bool)
	// Configure is called once to put all devices in the desired state.
	Configure(ctx context.Context) error
	// Run the service until the given context is canceled.
	Run(ctx context.Context) error
	// Close brings all devices back to a safe state.
	Close(context.Context) error
	// Get a list of configured device IDs
	GetConfiguredDeviceIDs() []string
	// Get a list of unconfigured device IDs
	GetUnconfiguredDeviceIDs() []string
	// DiscoverHardware probes the I2C bus and returns the addresses
	// of all devices that answered.
	DiscoverHardware(ctx context.Context) []string
}

type service struct {
	moduleID          string
	mqttBrokerAddress string
	log               zerolog.Logger
	devices           map[api.DeviceID]Device
	configuredDevices map[api.DeviceID]Device
	bus               bridge.I2CBus
	bAPI              bridge.API
	activeCount       uint32
}

// NewService instantiates a new Service and Device's for the given
// device configurations.
func NewService(moduleID, mqttBrokerAddress string,
	configs []*api.Device, isVirtual bool,
	bAPI bridge.API, bus bridge.I2CBus, log zerolog.Logger) (Service, error) {
	s := &service{
		moduleID:          moduleID,
		mqttBrokerAddress: mqttBrokerAddress,
		log:               log.With().Str("component", "device-service").Logger(),
		devices:           make(map[api.DeviceID]Device),
		configuredDevices: make(map[api.DeviceID]Device),
		bus:               bus,
		bAPI:              bAPI,
	}
	for _, c := range configs {
		var dev Device
		var err error
		switch c.Type {
		case api.DeviceTypeGPIO:
			// The bridge serves local pins on real and virtual boards alike
			dev, err = newLocalGPIO(*c, bAPI, s.onActive)
		case api.DeviceTypePWM:
			if isVirtual {
				dev, err = newMQTTPWM(log, c.ID, s.onActive, moduleID, mqttTopicPrefix(moduleID, c), s.mqttBrokerAddress)
			} else {
				dev, err = newLocalPWM(*c, s.onActive)
			}
		case api.DeviceTypeMCP23008:
			if isVirtual {
				dev, err = newMQTTGPIO(log, c.ID, s.onActive, moduleID, mqttTopicPrefix(moduleID, c), s.mqttBrokerAddress)
			} else {
				dev, err = newMcp23008(*c, bus, s.onActive)
			}
		case api.DeviceTypeMCP23017:
			if isVirtual {
				dev, err = newMQTTGPIO(log, c.ID, s.onActive, moduleID, mqttTopicPrefix(moduleID, c), s.mqttBrokerAddress)
			} else {
				dev, err = newMcp23017(*c, bus, s.onActive)
			}
		case api.DeviceTypePCF8574:
			if isVirtual {
				dev, err = newMQTTGPIO(log, c.ID, s.onActive, moduleID, mqttTopicPrefix(moduleID, c), s.mqttBrokerAddress)
			} else {
				dev, err = newPCF8574(*c, bus, s.onActive)
			}
		case api.DeviceTypePCA9685:
			if isVirtual {
				dev, err = newMQTTPWM(log, c.ID, s.onActive, moduleID, mqttTopicPrefix(moduleID, c), s.mqttBrokerAddress)
			} else {
				dev, err = newPCA9685(*c, bus, s.onActive)
			}
		case api.DeviceTypeMQTTGPIO:
			dev, err = newMQTTGPIO(log, c.ID, s.onActive, moduleID, mqttTopicPrefix(moduleID, c), s.mqttBrokerAddress)
		case api.DeviceTypeMQTTPWM:
			dev, err = newMQTTPWM(log, c.ID, s.onActive, moduleID, mqttTopicPrefix(moduleID, c), s.mqttBrokerAddress)
		default:
			return nil, api.InvalidArgument("Unsupported device type '%s'", c.Type)
		}
		if err != nil {
			return nil, err
		}
		s.devices[c.ID] = dev
	}
	devicesCreatedTotal.Set(float64(len(s.devices)))
	return s, nil
}

// defaultMQTTTopicPrefix returns the topic prefix for devices of the
// module with given ID.
func defaultMQTTTopicPrefix(moduleID string) string {
	return strings.ToLower(fmt.Sprintf("/bench/%s/", moduleID))
}

// mqttTopicPrefix returns the topic prefix for the given device.
// A device address that looks like a topic overrides the default prefix.
func mqttTopicPrefix(moduleID string, c *api.Device) string {
	if addr := c.Address; strings.HasPrefix(addr, "/") {
		return strings.TrimSuffix(addr, "/") + "/"
	}
	return strings.ToLower(fmt.Sprintf("%s%s/", defaultMQTTTopicPrefix(moduleID), c.ID))
}

// DeviceByID returns the device with given ID.
// Return false if not found or not configured.
func (s *service) DeviceByID(id api.DeviceID) (Device, bool) {
	dev, ok := s.configuredDevices[id]
	return dev, ok
}

// Configure is called once to put all devices in the desired state.
func (s *service) Configure(ctx context.Context) error {
	log := s.log
	var ae aerr.AggregateError
	configuredDevices := make(map[api.DeviceID]Device)
	for id, d := range s.devices {
		log := log.With().Str("device-id", string(id)).Logger()
		log.Debug().Msg("configuring device...")
		if err := d.Configure(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to configure device")
			ae.Add(err)
		} else {
			configuredDevices[id] = d
			log.Debug().Msg("configured device")
		}
	}
	s.configuredDevices = configuredDevices
	log.Info().Int("count", len(configuredDevices)).Msg("Configured devices")
	devicesConfiguredTotal.Set(float64(len(configuredDevices)))
	return ae.AsError()
}

// Run the service until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runActiveNotify(ctx) })
	return g.Wait()
}

// Close brings all devices back to a safe state.
func (s *service) Close(ctx context.Context) error {
	var ae aerr.AggregateError
	for _, d := range s.devices {
		if err := d.Close(ctx); err != nil {
			ae.Add(err)
		}
	}
	return ae.AsError()
}

// onActive is called when a device change is activated.
func (s *service) onActive() {
	atomic.AddUint32(&s.activeCount, 1)
}

// runActiveNotify updates the blinking status when a device has become active
func (s *service) runActiveNotify(ctx context.Context) error {
	lastActiveCount := uint32(0)
	count := 0
	for {
		select {
		case <-ctx.Done():
			// Context canceled
			return nil
		case <-time.After(time.Second / 10):
			newActiveCount := atomic.LoadUint32(&s.activeCount)
			if newActiveCount != lastActiveCount {
				lastActiveCount = newActiveCount
				s.bAPI.BlinkRedLED(time.Second / 10)
				count = 0
			} else if count < 20 {
				count++
			} else {
				count = 0
				s.bAPI.SetRedLED(false)
			}
		}
	}
}

// DiscoverHardware probes the I2C bus and returns the addresses of all
// devices that answered.
func (s *service) DiscoverHardware(ctx context.Context) []string {
	log := s.log
	log.Debug().Msg("Received discover request")

	addrs := s.bus.DetectSlaveAddresses()
	result := lo.Map(addrs, func(addr byte, _ int) string {
		return fmt.Sprintf("0x%x", addr)
	})
	log.Info().Strs("addresses", result).Msg("Discovered addresses")
	return result
}

// Get a list of configured device IDs
func (s *service) GetConfiguredDeviceIDs() []string {
	result := lo.Map(lo.Keys(s.configuredDevices), func(id api.DeviceID, _ int) string {
		return string(id)
	})
	sort.Strings(result)
	return result
}

// Get a list of unconfigured device IDs
func (s *service) GetUnconfiguredDeviceIDs() []string {
	ids := lo.Reject(lo.Keys(s.devices), func(id api.DeviceID, _ int) bool {
		_, found := s.configuredDevices[id]
		return found
	})
	result := lo.Map(ids, func(id api.DeviceID, _ int) string {
		return string(id)
	})
	sort.Strings(result)
	return result
}
