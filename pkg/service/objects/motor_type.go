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

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
)

type motorType string

const motorTypeInstance motorType = "motorType"

func (t motorType) String() string {
	return string(t)
}

func (motorType) Run(ctx context.Context, log zerolog.Logger, requests RequestService, statuses StatusService, service Service, moduleID string) error {
	cancel := requests.RegisterMotorRequestReceiver(func(msg api.Motor) error {
		if obj, isGlobal, found := service.ObjectByAddress(msg.Address); found {
			if x, ok := obj.(*motor); ok {
				// Process message
				if err := x.ProcessMessage(ctx, msg); err != nil {
					log.Error().Err(err).Msg("ProcessMessage failed")
					return err
				}
				// Set metrics
				id := string(msg.Address)
				motorRequestsTotal.WithLabelValues(id).Inc()
				motorRequestGauge.WithLabelValues(id).Set(float64(msg.GetRequest().GetDuty()))
			} else {
				return errors.Errorf("Expected object of type motor")
			}
		} else if !isGlobal {
			log.Debug().Msg("motor object not found")
		}
		return nil
	})
	defer cancel()
	<-ctx.Done()
	return nil
}
