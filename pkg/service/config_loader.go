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
	"time"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/config"
)

const (
	// Delay between retries of a failing initial configuration load.
	configLoadRetryDelay = time.Second * 5
)

// runLoadConfig loads the module configuration and keeps watching the
// configuration file, putting config changes in configChanged channel.
func (s *service) runLoadConfig(ctx context.Context,
	configChanged chan<- *api.ModuleConfiguration) {

	// Prepare log
	log := s.Logger.With().Str("component", "config-loader").Logger()

	var lastConfHash string
	loadConfig := func() bool {
		conf, hash, err := config.Load(s.ConfigPath)
		if err != nil {
			log.Error().Err(err).
				Str("path", s.ConfigPath).
				Msg("Failed to load configuration")
			configurationLoadErrorsTotal.Inc()
			return false
		}
		if hash == lastConfHash {
			log.Debug().
				Str("hash", hash).
				Msg("Received identical configuration")
			return true
		}
		log.Debug().
			Str("hash", hash).
			Msg("Received new configuration")
		lastConfHash = hash
		s.setConfigHash(hash)
		configurationChangesTotal.Inc()
		select {
		case configChanged <- conf:
			// Continue
		case <-ctx.Done():
			// Context canceled
		}
		return true
	}

	// Start watching before the initial load, so a file that appears
	// right after a failing load is still picked up.
	changes, err := config.Watch(ctx, log, s.ConfigPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to watch configuration file")
		// A nil channel blocks forever; the retry loop below still works.
		changes = nil
	}

	// Initial load, retried until it succeeds
	for {
		if loadConfig() {
			break
		}
		select {
		case <-ctx.Done():
			// Context canceled
			return
		case <-time.After(configLoadRetryDelay):
			// Retry
		case _, ok := <-changes:
			if !ok {
				changes = nil
			}
			// File changed, retry now
		}
	}

	// Follow changes
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				log.Debug().Msg("Configuration watcher closed")
				return
			}
			// A load failure here keeps the last valid configuration
			// running.
			loadConfig()
		case <-ctx.Done():
			// Context canceled
			return
		}
	}
}
