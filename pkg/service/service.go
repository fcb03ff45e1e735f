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
	"crypto/sha1"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/logging"
	"github.com/motorbench/BenchWorker/pkg/service/bridge"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
	"github.com/motorbench/BenchWorker/pkg/service/mqtt"
	"github.com/motorbench/BenchWorker/pkg/service/util"
	"github.com/motorbench/BenchWorker/pkg/service/worker"
)

// Service is the top level service of the bench worker.
// It loads and watches the module configuration and keeps a worker
// running for the most recent configuration.
type Service interface {
	// Run the service until the given context is cancelled.
	Run(ctx context.Context)
	intf.RequestService
	// DiscoverHardware scans the I2C bus for attached devices.
	DiscoverHardware(ctx context.Context) []string
	// GetStatus returns a snapshot of the module state.
	GetStatus() Status
}

type Config struct {
	ProgramVersion string
	// Path of the module configuration file
	ConfigPath string
	// ModuleID overrides the host derived module ID when set
	ModuleID string
	// Address (host:port) of an MQTT broker. Empty disables the gateway.
	MQTTBrokerAddress string
	// Prefix for all MQTT topics of this module
	MQTTTopicPrefix string
	// Virtual runs the module without local hardware
	Virtual bool
}

type Dependencies struct {
	Logger zerolog.Logger
	Bridge bridge.API
	// MQTTLogWriter is wired to the broker once the gateway is up.
	// May be nil.
	MQTTLogWriter logging.MQTTWriter
}

type service struct {
	Config
	Dependencies

	mutex       sync.Mutex
	hostID      string
	moduleID    string
	startedAt   time.Time
	configHash  string
	worker      worker.Service
	publisher   intf.Publisher
	statusCache *statusCache
	mqttService mqtt.Service
}

var (
	// Error returned when config loader stopped unexpected
	errConfigLoaderStopped = errors.New("config loader stopped")
	// Error returned when workers stopped unexpected
	errWorkersStopped = errors.New("workers stopped")
)

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	deps.Logger = deps.Logger.With().Str("component", "service").Logger()
	// Create host ID
	hostID, err := createHostID()
	if err != nil {
		return nil, fmt.Errorf("failed to create host ID: %w", err)
	}
	moduleID := conf.ModuleID
	if moduleID == "" {
		moduleID = hostID
	}
	deps.Logger = deps.Logger.With().Str("module-id", moduleID).Logger()
	s := &service{
		Config:       conf,
		Dependencies: deps,
		hostID:       hostID,
		moduleID:     moduleID,
		startedAt:    time.Now(),
		statusCache:  newStatusCache(),
	}

	// The status cache always sees the actuals; the second publisher
	// is the MQTT gateway when a broker is configured, the log
	// otherwise.
	publishers := []intf.Publisher{s.statusCache}
	if conf.MQTTBrokerAddress != "" {
		ms, err := mqtt.NewService(mqtt.Config{
			BrokerAddress: conf.MQTTBrokerAddress,
			TopicPrefix:   conf.MQTTTopicPrefix,
			ModuleID:      moduleID,
		}, s, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create MQTT gateway: %w", err)
		}
		s.mqttService = ms
		publishers = append(publishers, ms)
	} else {
		publishers = append(publishers, newLogPublisher(deps.Logger))
	}
	s.publisher = newMultiPublisher(publishers...)
	return s, nil
}

// Run the service until the given context is cancelled.
func (s *service) Run(ctx context.Context) {
	log := s.Logger.With().Str("host-id", s.hostID).Logger()
	defer s.Bridge.Close()

	// Signal that we are starting up
	s.Bridge.BlinkGreenLED(time.Millisecond * 250)
	s.Bridge.SetRedLED(false)
	defer func() {
		s.Bridge.SetGreenLED(false)
		s.Bridge.SetRedLED(true)
	}()

	log.Info().
		Str("version", s.ProgramVersion).
		Str("config", s.ConfigPath).
		Msg("Starting bench worker")

	configChanged := make(chan *api.ModuleConfiguration)
	defer close(configChanged)
	g, lctx := errgroup.WithContext(ctx)

	// Keep the MQTT gateway connected (if configured)
	if ms := s.mqttService; ms != nil {
		if w := s.MQTTLogWriter; w != nil {
			w.SetDestination(ms.LogTopic(), ms.Publish)
			w.Enable(true)
		}
		g.Go(func() error {
			return util.UntilCanceled(lctx, log, "mqtt gateway", func() error {
				return ms.Run(lctx)
			})
		})
	}

	// Keep loading configuration changes
	g.Go(func() error {
		s.runLoadConfig(lctx, configChanged)
		if err := lctx.Err(); err != nil {
			return err
		}
		return errConfigLoaderStopped
	})

	// Keep running a worker
	g.Go(func() error {
		s.runWorkers(lctx, configChanged)
		if err := lctx.Err(); err != nil {
			return err
		}
		return errWorkersStopped
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Service run failed")
	}
}

// createHostID builds a stable ID for this host, preferring the OS
// machine ID and falling back to network hardware addresses.
func createHostID() (string, error) {
	if content, err := os.ReadFile("/etc/machine-id"); err == nil {
		content = []byte(strings.TrimSpace(string(content)))
		id := fmt.Sprintf("%x", sha1.Sum(content))
		return id[:10], nil
	}

	ifs, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	list := make([]string, 0, len(ifs))
	for _, v := range ifs {
		f := v.Flags
		if f&net.FlagUp != 0 && f&net.FlagLoopback == 0 {
			if h := v.HardwareAddr.String(); len(h) > 0 {
				list = append(list, h)
			}
		}
	}
	sort.Strings(list)
	list = append(list, runtime.GOOS, runtime.GOARCH)
	data := []byte(strings.Join(list, ","))
	id := fmt.Sprintf("%x", sha1.Sum(data))
	return id[:10], nil
}
