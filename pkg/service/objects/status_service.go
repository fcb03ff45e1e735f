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
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
	utils "github.com/motorbench/BenchWorker/pkg/service/util"
)

// statusService queues actual state messages from the objects and hands
// them to a publisher in the background.
type statusService struct {
	log           zerolog.Logger
	outputActuals chan api.Output
	sensorActuals chan api.Sensor
	motorActuals  chan api.Motor
}

const (
	setActualTimeout      = time.Second * 5
	publishHandoffTimeout = time.Second * 10
)

// newStatusService creates a new StatusService.
func newStatusService(log zerolog.Logger) *statusService {
	return &statusService{
		log:           log,
		outputActuals: make(chan api.Output, 8),
		sensorActuals: make(chan api.Sensor, 8),
		motorActuals:  make(chan api.Motor, 8),
	}
}

// Run the service until the given context is canceled
func (s *statusService) Run(ctx context.Context, publisher intf.Publisher) error {
	log := s.log
	g, ctx := errgroup.WithContext(ctx)
	// Send output actuals
	g.Go(func() error {
		once := func() error {
			for {
				select {
				case msg := <-s.outputActuals:
					lctx, cancel := context.WithTimeout(ctx, setActualTimeout)
					err := publisher.PublishOutputActual(lctx, msg)
					cancel()
					if err != nil {
						log.Debug().Err(err).Msg("Publish(Output) failed")
						return err
					}
				case <-ctx.Done():
					return nil
				}
			}
		}
		return utils.UntilCanceled(ctx, log, "sendOutputActuals", once)
	})
	// Send sensor actuals
	g.Go(func() error {
		once := func() error {
			for {
				select {
				case msg := <-s.sensorActuals:
					lctx, cancel := context.WithTimeout(ctx, setActualTimeout)
					err := publisher.PublishSensorActual(lctx, msg)
					cancel()
					if err != nil {
						log.Debug().Err(err).Msg("Publish(Sensor) failed")
						return err
					}
				case <-ctx.Done():
					return nil
				}
			}
		}
		return utils.UntilCanceled(ctx, log, "sendSensorActuals", once)
	})
	// Send motor actuals
	g.Go(func() error {
		once := func() error {
			for {
				select {
				case msg := <-s.motorActuals:
					lctx, cancel := context.WithTimeout(ctx, setActualTimeout)
					err := publisher.PublishMotorActual(lctx, msg)
					cancel()
					if err != nil {
						log.Debug().Err(err).Msg("Publish(Motor) failed")
						return err
					}
				case <-ctx.Done():
					return nil
				}
			}
		}
		return utils.UntilCanceled(ctx, log, "sendMotorActuals", once)
	})
	return g.Wait()
}

func (s *statusService) PublishOutputActual(msg api.Output) bool {
	select {
	case s.outputActuals <- msg:
		// Done
		return true
	case <-time.After(publishHandoffTimeout):
		// Timeout
		s.log.Warn().
			Str("address", string(msg.GetAddress())).
			Int32("value", msg.GetActual().GetValue()).
			Msg("Timeout in publishing output actual")
		return false
	}
}

func (s *statusService) PublishSensorActual(msg api.Sensor) bool {
	select {
	case s.sensorActuals <- msg:
		// Done
		return true
	case <-time.After(publishHandoffTimeout):
		// Timeout
		s.log.Warn().
			Str("address", string(msg.GetAddress())).
			Int32("value", msg.GetActual().GetValue()).
			Msg("Timeout in publishing sensor actual")
		return false
	}
}

func (s *statusService) PublishMotorActual(msg api.Motor) bool {
	select {
	case s.motorActuals <- msg:
		// Done
		return true
	case <-time.After(publishHandoffTimeout):
		// Timeout
		s.log.Warn().
			Str("address", string(msg.GetAddress())).
			Int32("duty", msg.GetActual().GetDuty()).
			Msg("Timeout in publishing motor actual")
		return false
	}
}
