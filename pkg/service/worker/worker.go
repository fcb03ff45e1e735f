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

package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/bridge"
	"github.com/motorbench/BenchWorker/pkg/service/devices"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
	"github.com/motorbench/BenchWorker/pkg/service/objects"
)

// Service contains the API exposed by the worker service
type Service interface {
	// Run the worker service until the given context is cancelled.
	Run(ctx context.Context) error
	intf.GetRequestService
	// DiscoverHardware scans the I2C bus for attached devices.
	DiscoverHardware(ctx context.Context) []string
	// GetConfiguredDeviceIDs returns the IDs of devices that were configured.
	GetConfiguredDeviceIDs() []string
	// GetUnconfiguredDeviceIDs returns the IDs of devices that failed to configure.
	GetUnconfiguredDeviceIDs() []string
	// GetConfiguredObjectIDs returns the addresses of objects that were configured.
	GetConfiguredObjectIDs() []string
	// GetUnconfiguredObjectIDs returns the addresses of objects that failed to configure.
	GetUnconfiguredObjectIDs() []string
}

type Config struct {
	api.ModuleConfiguration
	ProgramVersion    string
	ModuleID          string
	HardwareID        string
	MQTTBrokerAddress string
	Virtual           bool
}

type Dependencies struct {
	Log       zerolog.Logger
	Bridge    bridge.API
	Publisher intf.Publisher
}

// NewService instantiates a new Service.
func NewService(config Config, deps Dependencies) (Service, error) {
	return &service{
		config:       config,
		Dependencies: deps,
	}, nil
}

type service struct {
	config Config
	Dependencies
	devService devices.Service
	objService objects.Service
}

// Run the worker service until the given context is cancelled.
func (s *service) Run(ctx context.Context) error {
	log := s.Log
	// Open I2C bus
	log.Debug().Msg("open I2C bus")
	bus, err := s.Bridge.I2CBus()
	if err != nil {
		log.Debug().Err(err).Msg("Open I2CBus failed")
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	// Build devices service
	log.Debug().Msg("build devices service")
	devService, err := devices.NewService(s.config.ModuleID, s.config.MQTTBrokerAddress,
		s.config.GetDevices(), s.config.Virtual, s.Bridge, bus, s.Log)
	if err != nil {
		log.Debug().Err(err).Msg("devices.NewService failed")
		return fmt.Errorf("devices.NewService failed: %w", err)
	}
	s.devService = devService

	defer func() {
		log.Debug().Msg("closing devices service")
		devService.Close(context.Background())
	}()

	// Configure devices
	log.Debug().Msg("configure devices")
	if err := devService.Configure(ctx); err != nil {
		// Log error
		log.Error().Err(err).Msg("Not all devices are configured")
	}
	// Stop fast if context canceled
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Build objects service
	log.Debug().Msg("build objects service")
	objService, err := objects.NewService(s.config.ModuleID, s.config.GetObjects(),
		devService, s.Log.With().Str("component", "worker.objects").Logger())
	if err != nil {
		log.Debug().Err(err).Msg("objects.NewService failed")
		return fmt.Errorf("objects.NewService failed: %w", err)
	}
	s.objService = objService

	// Configure objects
	s.Log.Debug().Msg("configure objects")
	if err := objService.Configure(ctx); err != nil {
		// Log error
		s.Log.Error().Err(err).Msg("Not all objects are configured")
	}
	// Stop fast if context canceled
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Run devices & objects
	g, lctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Debug().Msg("run devices")
		if err := devService.Run(lctx); err != nil {
			log.Error().Err(err).Msg("Run devices failed")
			return fmt.Errorf("failed to run devices: %w", err)
		}
		log.Debug().Msg("run devices ended")
		return nil
	})
	g.Go(func() error {
		s.Log.Debug().Msg("run objects")
		if err := objService.Run(lctx, s.Publisher); err != nil {
			log.Error().Err(err).Msg("Run objects failed")
			return fmt.Errorf("failed to run objects: %w", err)
		}
		s.Log.Debug().Msg("run objects ended")
		return nil
	})
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "Wait failed")
	}

	return nil
}

// GetRequestService returns the request service of the objects service,
// if the worker got that far in its setup.
func (s *service) GetRequestService() intf.RequestService {
	if os := s.objService; os != nil {
		return os
	}
	return nil
}

// DiscoverHardware scans the I2C bus for attached devices.
func (s *service) DiscoverHardware(ctx context.Context) []string {
	if ds := s.devService; ds != nil {
		return ds.DiscoverHardware(ctx)
	}
	return nil
}

// GetConfiguredDeviceIDs returns the IDs of devices that were configured.
func (s *service) GetConfiguredDeviceIDs() []string {
	if ds := s.devService; ds != nil {
		return ds.GetConfiguredDeviceIDs()
	}
	return nil
}

// GetUnconfiguredDeviceIDs returns the IDs of devices that failed to configure.
func (s *service) GetUnconfiguredDeviceIDs() []string {
	if ds := s.devService; ds != nil {
		return ds.GetUnconfiguredDeviceIDs()
	}
	return nil
}

// GetConfiguredObjectIDs returns the addresses of objects that were configured.
func (s *service) GetConfiguredObjectIDs() []string {
	if os := s.objService; os != nil {
		return os.GetConfiguredObjectIDs()
	}
	return nil
}

// GetUnconfiguredObjectIDs returns the addresses of objects that failed to configure.
func (s *service) GetUnconfiguredObjectIDs() []string {
	if os := s.objService; os != nil {
		return os.GetUnconfiguredObjectIDs()
	}
	return nil
}
