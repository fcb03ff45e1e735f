//    Copyright 2025 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"

	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/motorbench/BenchWorker/pkg/environment"
	"github.com/motorbench/BenchWorker/pkg/logging"
	"github.com/motorbench/BenchWorker/pkg/server"
	"github.com/motorbench/BenchWorker/pkg/service"
	"github.com/motorbench/BenchWorker/pkg/service/bridge"
	"github.com/motorbench/BenchWorker/pkg/ui"
)

const (
	projectName     = "Bench Worker"
	defaultHTTPPort = 7129
	defaultSSHPort  = 7130
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var levelFlag string
	var bridgeType string
	var configPath string
	var serverHost string
	var httpPort int
	var sshPort int
	var mqttBrokerAddress string
	var mqttTopicPrefix string
	var moduleID string

	pflag.StringVarP(&levelFlag, "level", "l", "debug", "Set log level")
	pflag.StringVarP(&bridgeType, "bridge", "b", "auto", "Type of bridge to use (auto|rpi|opz|virtual)")
	pflag.StringVarP(&configPath, "config", "c", "benchworker.yaml", "Path of the module configuration file")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the servers will listen on")
	pflag.IntVar(&httpPort, "http-port", defaultHTTPPort, "Port the HTTP server will listen on")
	pflag.IntVar(&sshPort, "ssh-port", defaultSSHPort, "Port the SSH status console will listen on")
	pflag.StringVar(&mqttBrokerAddress, "mqtt", "", "Address (host:port) of the MQTT broker (empty disables the MQTT gateway)")
	pflag.StringVar(&mqttTopicPrefix, "mqtt-topic-prefix", "", "Prefix for all MQTT topics")
	pflag.StringVar(&moduleID, "module-id", "", "Identifier of this module (defaults to an identifier derived from the host)")
	pflag.Parse()

	// Prepare logger with MQTT mirror.
	// The mirror stays disabled until the MQTT gateway has connected.
	mainCtx, cancel := context.WithCancel(context.Background())
	mqttLogWriter := logging.NewMQTTWriter(mainCtx)
	logWriter := logging.NewMultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, mqttLogWriter)
	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelFlag); err != nil {
		Exitf("Unknown log level '%s': %v\n", levelFlag, err)
	} else {
		logger = logger.Level(level)
	}

	if bridgeType == "auto" {
		bridgeType = environment.AutoDetectBridgeType(logger)
	}
	var br bridge.API
	var err error
	switch bridgeType {
	case "rpi":
		br, err = bridge.NewRaspberryPiBridge()
		if err != nil {
			Exitf("Failed to initialize Raspberry Pi Bridge: %v\n", err)
		}
	case "opz":
		br, err = bridge.NewOrangePIZeroBridge()
		if err != nil {
			Exitf("Failed to initialize Orange Pi Zero Bridge: %v\n", err)
		}
	case "virtual":
		br, err = bridge.NewVirtualBridge(logger)
		if err != nil {
			Exitf("Failed to initialize Virtual Bridge: %v\n", err)
		}
	default:
		Exitf("Unknown bridge type '%s' (auto|rpi|opz|virtual)\n", bridgeType)
	}

	svc, err := service.NewService(service.Config{
		ProgramVersion:    projectVersion,
		ConfigPath:        configPath,
		ModuleID:          moduleID,
		MQTTBrokerAddress: mqttBrokerAddress,
		MQTTTopicPrefix:   mqttTopicPrefix,
		Virtual:           bridgeType == "virtual",
	}, service.Dependencies{
		Logger:        logger,
		Bridge:        br,
		MQTTLogWriter: mqttLogWriter,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	srv, err := server.New(server.Config{
		Host:     serverHost,
		HTTPPort: httpPort,
		SSHPort:  sshPort,
	}, logger, ui.NewHandler(svc), svc)
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(mainCtx)
	g.Go(func() error { svc.Run(ctx); return nil })
	g.Go(func() error { return srv.Run(ctx) })
	if err := g.Wait(); err != nil {
		Exitf("Service run failed: %#v", err)
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
