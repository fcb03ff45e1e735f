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
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/devices"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
)

// Service contains the API that is exposed by the object service.
type Service interface {
	// ObjectByAddress returns the object with given address.
	// Returns: Object, IsGlobal, found
	ObjectByAddress(address api.ObjectAddress) (Object, bool, bool)
	// Configure is called once to put all objects in the desired state.
	Configure(ctx context.Context) error
	// Run all objects until the given context is cancelled.
	Run(ctx context.Context, publisher intf.Publisher) error
	// GetConfiguredObjectIDs returns the addresses of all configured objects.
	GetConfiguredObjectIDs() []string
	// GetUnconfiguredObjectIDs returns the addresses of all objects that
	// failed to configure.
	GetUnconfiguredObjectIDs() []string
	intf.RequestService
}

type service struct {
	startTime         time.Time
	moduleID          string
	devService        devices.Service
	objects           map[api.ObjectAddress]Object
	configuredObjects map[api.ObjectAddress]Object
	log               zerolog.Logger
	requestService    requestService
}

// NewService instantiates a new Service and Object's for the given
// object configurations.
func NewService(moduleID string, configs []*api.Object, devService devices.Service, log zerolog.Logger) (Service, error) {
	s := &service{
		startTime:         time.Now(),
		moduleID:          moduleID,
		devService:        devService,
		objects:           make(map[api.ObjectAddress]Object),
		configuredObjects: make(map[api.ObjectAddress]Object),
		log:               log.With().Str("component", "object-service").Logger(),
	}
	for _, c := range configs {
		var obj Object
		var err error
		id := c.ID
		address := api.JoinModuleLocal(moduleID, string(id))
		log := log.With().
			Str("address", string(address)).
			Str("type", string(c.Type)).
			Logger()
		log.Debug().Msg("creating object...")
		switch c.Type {
		case api.ObjectTypeBinarySensor:
			obj, err = newBinarySensor(moduleID, id, address, *c, log, devService)
		case api.ObjectTypeBinaryOutput:
			obj, err = newBinaryOutput(moduleID, id, address, *c, log, devService)
		case api.ObjectTypeMotor:
			obj, err = newMotor(moduleID, id, address, *c, log, devService)
		case api.ObjectTypeMotorRamp:
			obj, err = newMotorRamp(moduleID, id, address, *c, log, devService)
		default:
			err = api.InvalidArgument("Unsupported object type '%s'", c.Type)
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to create object")
		} else {
			s.objects[address] = obj
		}
	}
	log.Debug().Msgf("created %d objects", len(s.objects))
	objectsCreatedTotal.Set(float64(len(s.objects)))
	return s, nil
}

// ObjectByAddress returns the object with given object address.
// Returns: Object, IsGlobal, found
func (s *service) ObjectByAddress(address api.ObjectAddress) (Object, bool, bool) {
	// Split address
	module, id := address.Split()
	isGlobal := module == api.GlobalModuleID

	// Try module local addresses
	if obj, ok := s.configuredObjects[address]; ok {
		return obj, isGlobal, true
	}
	// Try global addresses
	if isGlobal {
		localAddr := api.JoinModuleLocal(s.moduleID, id)
		if obj, ok := s.configuredObjects[localAddr]; ok {
			return obj, true, true
		}
	}
	return nil, isGlobal, false
}

// Configure is called once to put all objects in the desired state.
func (s *service) Configure(ctx context.Context) error {
	var ae aerr.AggregateError
	configuredObjects := make(map[api.ObjectAddress]Object)
	log := s.log
	for addr, obj := range s.objects {
		log := log.With().Str("address", string(addr)).Logger()
		log.Debug().Msg("configuring object ...")
		time.Sleep(time.Millisecond * 200)
		if err := obj.Configure(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to configure object")
			ae.Add(err)
		} else {
			configuredObjects[addr] = obj
			log.Debug().Msg("configured object")
		}
	}
	s.configuredObjects = configuredObjects
	objectsConfiguredTotal.Set(float64(len(configuredObjects)))
	return ae.AsError()
}

// Run all objects until the given context is cancelled.
func (s *service) Run(ctx context.Context, publisher intf.Publisher) error {
	defer func() {
		s.log.Debug().Msg("Run Objects ended")
	}()

	// Do nothing if we do not have configured objects
	if len(s.configuredObjects) == 0 {
		s.log.Warn().Msg("no configured objects, just waiting for context to be cancelled")
		<-ctx.Done()
		return nil
	}

	// Create request/status services
	requests := newRequestService(s.log)
	s.requestService = requests
	statuses := newStatusService(s.log)

	g, ctx := errgroup.WithContext(ctx)
	// Run requests
	g.Go(func() error { return requests.Run(ctx) })
	// Run statuses
	g.Go(func() error { return statuses.Run(ctx, publisher) })

	// Run all objects & object types.
	visitedTypes := make(map[ObjectType]struct{})
	var runningObjects, runningObjectTypes int32
	for addr, obj := range s.configuredObjects {
		// Run the object itself
		addr := addr // Bring range variables in scope
		obj := obj
		g.Go(func() error {
			atomic.AddInt32(&runningObjects, 1)
			log := s.log.With().
				Str("address", string(addr)).
				Str("objType", obj.Type().String()).
				Logger()
			defer func() {
				atomic.AddInt32(&runningObjects, -1)
				log.Debug().Msg("Stopped running object")
			}()
			log.Debug().Msg("Running object")
			if err := obj.Run(ctx, requests, statuses, s.moduleID); err != nil {
				return err
			}
			return nil
		})

		// Run the message pump for the type of object (if not running already)
		if objType := obj.Type(); objType != nil {
			if _, found := visitedTypes[objType]; found {
				// Type already running
				continue
			}
			visitedTypes[objType] = struct{}{}
			g.Go(func() error {
				atomic.AddInt32(&runningObjectTypes, 1)
				log := s.log.With().Str("objType", objType.String()).Logger()
				defer func() {
					atomic.AddInt32(&runningObjectTypes, -1)
					log.Debug().Msg("Stopped running object type")
				}()
				log.Debug().Msg("Running object type")
				if err := objType.Run(ctx, log, requests, statuses, s, s.moduleID); err != nil {
					return err
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		for {
			objs := atomic.LoadInt32(&runningObjects)
			objTypes := atomic.LoadInt32(&runningObjectTypes)
			if objs == 0 && objTypes == 0 {
				s.log.Debug().Msg("No more running objects & object types")
				return nil
			}
			s.log.Debug().
				Int32("running_objects", objs).
				Int32("running_object_types", objTypes).
				Msg("Still running objects")
			time.Sleep(time.Second * 2)
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("Run Objects failed")
		return err
	}

	return nil
}

// Set the requested power state
func (s *service) SetPowerRequest(ctx context.Context, msg *api.PowerState) error {
	log := s.log
	log.Debug().Bool("enabled", msg.GetEnabled()).Msg("Received power request")
	req := *msg
	for _, obj := range s.configuredObjects {
		go func(obj Object, msg api.PowerState) {
			if err := obj.ProcessPowerMessage(ctx, msg); err != nil {
				log.Info().Err(err).Msg("Object failed to process PowerMessage")
			}
		}(obj, req)
	}
	return nil
}

// Set the requested output state
func (s *service) SetOutputRequest(ctx context.Context, msg *api.Output) error {
	if rs := s.requestService; rs != nil {
		return rs.SetOutputRequest(ctx, msg)
	}
	return fmt.Errorf("not ready yet")
}

// Set the requested motor state
func (s *service) SetMotorRequest(ctx context.Context, msg *api.Motor) error {
	if rs := s.requestService; rs != nil {
		return rs.SetMotorRequest(ctx, msg)
	}
	return fmt.Errorf("not ready yet")
}

// GetConfiguredObjectIDs builds a list of addresses of all configured objects
func (s *service) GetConfiguredObjectIDs() []string {
	confObjs := s.configuredObjects
	result := make([]string, 0, len(confObjs))
	for k := range confObjs {
		result = append(result, string(k))
	}
	sort.Strings(result)
	return result
}

// GetUnconfiguredObjectIDs builds a list of addresses of all unconfigured objects
func (s *service) GetUnconfiguredObjectIDs() []string {
	allObjs := s.objects
	result := make([]string, 0, len(allObjs))
	for id := range allObjs {
		if _, found := s.configuredObjects[id]; !found {
			result = append(result, string(id))
		}
	}
	sort.Strings(result)
	return result
}
