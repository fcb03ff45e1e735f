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

package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
	"github.com/motorbench/BenchWorker/pkg/service/worker"
)

// currentWorker returns the worker that is currently running, if any.
func (s *service) currentWorker() worker.Service {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.worker
}

// setWorker records the worker that is currently running.
func (s *service) setWorker(w worker.Service) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.worker = w
}

// setConfigHash records the hash of the running configuration.
func (s *service) setConfigHash(hash string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.configHash = hash
}

// requestService returns the request service of the current worker.
// While no worker is running (startup, restart after a configuration
// change) an error is returned.
func (s *service) requestService() (intf.RequestService, error) {
	if w := s.currentWorker(); w != nil {
		if rs := w.GetRequestService(); rs != nil {
			return rs, nil
		}
	}
	requestServiceUnavailableTotal.Inc()
	return nil, errors.New("request service not available")
}

// SetPowerRequest forwards the requested power state to the current worker.
func (s *service) SetPowerRequest(ctx context.Context, msg *api.PowerState) error {
	setPowerRequestTotal.Inc()
	rs, err := s.requestService()
	if err != nil {
		s.Logger.Error().Msg("request service not available in SetPowerRequest")
		return err
	}
	return rs.SetPowerRequest(ctx, msg)
}

// SetOutputRequest forwards the requested output state to the current worker.
func (s *service) SetOutputRequest(ctx context.Context, msg *api.Output) error {
	setOutputRequestTotal.WithLabelValues(string(msg.GetAddress())).Inc()
	rs, err := s.requestService()
	if err != nil {
		s.Logger.Error().Msg("request service not available in SetOutputRequest")
		return err
	}
	return rs.SetOutputRequest(ctx, msg)
}

// SetMotorRequest forwards the requested motor state to the current worker.
func (s *service) SetMotorRequest(ctx context.Context, msg *api.Motor) error {
	setMotorRequestTotal.WithLabelValues(string(msg.GetAddress())).Inc()
	rs, err := s.requestService()
	if err != nil {
		s.Logger.Error().Msg("request service not available in SetMotorRequest")
		return err
	}
	return rs.SetMotorRequest(ctx, msg)
}

// DiscoverHardware scans the I2C bus of the current worker.
func (s *service) DiscoverHardware(ctx context.Context) []string {
	if w := s.currentWorker(); w != nil {
		return w.DiscoverHardware(ctx)
	}
	return nil
}

// GetStatus returns a snapshot of the module state.
func (s *service) GetStatus() Status {
	s.mutex.Lock()
	result := Status{
		ModuleID:       s.moduleID,
		ProgramVersion: s.ProgramVersion,
		StartedAt:      s.startedAt,
		ConfigHash:     s.configHash,
	}
	w := s.worker
	s.mutex.Unlock()

	if w != nil {
		result.ConfiguredDevices = w.GetConfiguredDeviceIDs()
		result.UnconfiguredDevices = w.GetUnconfiguredDeviceIDs()
		result.ConfiguredObjects = w.GetConfiguredObjectIDs()
		result.UnconfiguredObjects = w.GetUnconfiguredObjectIDs()
	}
	result.Sensors, result.Outputs, result.Motors = s.statusCache.Snapshot()
	return result
}
