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

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
)

const (
	publishTimeout = time.Millisecond * 200

	// Topic parts used below the module prefix
	requestTopicPart = "req"
	actualTopicPart  = "actual"
	logTopicPart     = "log"
)

// Config for the MQTT gateway.
type Config struct {
	// BrokerAddress is the host:port of the MQTT broker.
	BrokerAddress string
	// TopicPrefix is put in front of all topics of this module.
	TopicPrefix string
	// ModuleID of this module.
	ModuleID string
}

// Service is the gateway between this module and an MQTT broker.
// Actual object states flow out as JSON on per-object state topics,
// requests flow in from the request topics of the module.
type Service interface {
	// Run connects to the broker and serves until the given context
	// is canceled.
	Run(ctx context.Context) error
	// Publish a raw payload into the given topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// LogTopic returns the topic that log lines of this module are
	// mirrored to.
	LogTopic() string
	intf.Publisher
}

// NewService instantiates a gateway for the given broker.
// Incoming requests are forwarded into the given request service.
func NewService(config Config, requests intf.RequestService, log zerolog.Logger) (Service, error) {
	if config.BrokerAddress == "" {
		return nil, api.InvalidArgument("BrokerAddress is empty")
	}
	if config.ModuleID == "" {
		return nil, api.InvalidArgument("ModuleID is empty")
	}
	prefix := config.TopicPrefix
	if prefix == "" {
		prefix = "/bench/"
	}
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	return &service{
		config:       config,
		modulePrefix: prefix + config.ModuleID + "/",
		requests:     requests,
		log:          log.With().Str("component", "mqtt-gateway").Logger(),
	}, nil
}

type service struct {
	config       Config
	modulePrefix string
	requests     intf.RequestService
	log          zerolog.Logger
	client       mqttapi.Client
}

// Run connects to the broker and serves until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	log := s.log
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + s.config.BrokerAddress).
		SetClientID(fmt.Sprintf("%s-gateway", s.config.ModuleID))
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})
	opts.SetOnConnectHandler(func(c mqttapi.Client) {
		topic := s.modulePrefix + requestTopicPart + "/#"
		if token := c.Subscribe(topic, 0, s.onRequestMessage); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).
				Msgf("failed to subscribe to '%s'", topic)
			c.Disconnect(500)
		} else {
			log.Debug().Msgf("Subscribed to MQTT topic '%s'", topic)
		}
	})

	s.client = mqttapi.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "failed to connect to mqtt")
	}
	log.Info().Str("broker", s.config.BrokerAddress).Msg("Connected to MQTT broker")

	<-ctx.Done()
	log.Debug().Msg("Disconnecting from MQTT broker")
	s.client.Disconnect(250)
	return nil
}

// onRequestMessage handles a message on one of the request topics.
func (s *service) onRequestMessage(client mqttapi.Client, msg mqttapi.Message) {
	if err := s.dispatchRequest(context.Background(), msg.Topic(), msg.Payload()); err != nil {
		s.log.Warn().Err(err).
			Str("topic", msg.Topic()).
			Msg("Failed to apply MQTT request")
	}
}

// dispatchRequest decodes the payload of a request topic and forwards
// it into the request service.
func (s *service) dispatchRequest(ctx context.Context, topic string, payload []byte) error {
	kind := strings.TrimPrefix(topic, s.modulePrefix+requestTopicPart+"/")
	switch kind {
	case "power":
		var msg api.PowerState
		if err := json.Unmarshal(payload, &msg); err != nil {
			return errors.Wrap(err, "invalid power request")
		}
		return s.requests.SetPowerRequest(ctx, &msg)
	case "output":
		var msg api.Output
		if err := json.Unmarshal(payload, &msg); err != nil {
			return errors.Wrap(err, "invalid output request")
		}
		return s.requests.SetOutputRequest(ctx, &msg)
	case "motor":
		var msg api.Motor
		if err := json.Unmarshal(payload, &msg); err != nil {
			return errors.Wrap(err, "invalid motor request")
		}
		return s.requests.SetMotorRequest(ctx, &msg)
	}
	return api.InvalidArgument("unknown request topic '%s'", topic)
}

// Publish a raw payload into the given topic.
func (s *service) Publish(ctx context.Context, topic string, payload []byte) error {
	client := s.client
	if client == nil {
		return errors.New("not connected")
	}
	retain := true
	token := client.Publish(topic, 0, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		s.log.Error().Err(token.Error()).
			Str("topic", topic).
			Msg("failed to deliver MQTT message in time")
	}
	return nil
}

// publishJSON marshals the given message and publishes it.
func (s *service) publishJSON(ctx context.Context, topic string, msg interface{}) error {
	encodedMsg, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to encode message")
	}
	return s.Publish(ctx, topic, encodedMsg)
}

// actualTopic returns the state topic for the object with given
// address and kind.
func (s *service) actualTopic(kind string, address api.ObjectAddress) string {
	_, localID := address.Split()
	return s.modulePrefix + kind + "/" + localID + "/" + actualTopicPart
}

// LogTopic returns the topic that log lines of this module are mirrored to.
func (s *service) LogTopic() string {
	return s.modulePrefix + logTopicPart
}

// PublishSensorActual sends the actual state of a binary sensor.
func (s *service) PublishSensorActual(ctx context.Context, msg api.Sensor) error {
	return s.publishJSON(ctx, s.actualTopic("sensor", msg.Address), msg)
}

// PublishOutputActual sends the actual state of a binary output.
func (s *service) PublishOutputActual(ctx context.Context, msg api.Output) error {
	return s.publishJSON(ctx, s.actualTopic("output", msg.Address), msg)
}

// PublishMotorActual sends the actual state of a motor output.
func (s *service) PublishMotorActual(ctx context.Context, msg api.Motor) error {
	return s.publishJSON(ctx, s.actualTopic("motor", msg.Address), msg)
}
