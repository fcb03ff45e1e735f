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

package service

import (
	"context"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
)

// logPublisher makes actual object states visible in the log.
// It is used when no MQTT broker is configured.
type logPublisher struct {
	log zerolog.Logger
}

func newLogPublisher(log zerolog.Logger) intf.Publisher {
	return &logPublisher{
		log: log.With().Str("component", "publisher").Logger(),
	}
}

// PublishSensorActual sends the actual state of a binary sensor.
func (p *logPublisher) PublishSensorActual(ctx context.Context, msg api.Sensor) error {
	p.log.Info().
		Str("address", string(msg.GetAddress())).
		Int32("value", msg.GetActual().GetValue()).
		Msg("sensor actual")
	return nil
}

// PublishOutputActual sends the actual state of a binary output.
func (p *logPublisher) PublishOutputActual(ctx context.Context, msg api.Output) error {
	p.log.Info().
		Str("address", string(msg.GetAddress())).
		Int32("value", msg.GetActual().GetValue()).
		Msg("output actual")
	return nil
}

// PublishMotorActual sends the actual state of a motor output.
func (p *logPublisher) PublishMotorActual(ctx context.Context, msg api.Motor) error {
	p.log.Info().
		Str("address", string(msg.GetAddress())).
		Int32("duty", msg.GetActual().GetDuty()).
		Str("state", string(msg.GetActual().GetState())).
		Msg("motor actual")
	return nil
}

// multiPublisher fans every publish out to all given publishers.
type multiPublisher struct {
	publishers []intf.Publisher
}

func newMultiPublisher(publishers ...intf.Publisher) intf.Publisher {
	return &multiPublisher{
		publishers: publishers,
	}
}

// PublishSensorActual sends the actual state of a binary sensor.
func (p *multiPublisher) PublishSensorActual(ctx context.Context, msg api.Sensor) error {
	var ae aerr.AggregateError
	for _, pub := range p.publishers {
		if err := pub.PublishSensorActual(ctx, msg); err != nil {
			ae.Add(err)
		}
	}
	return ae.AsError()
}

// PublishOutputActual sends the actual state of a binary output.
func (p *multiPublisher) PublishOutputActual(ctx context.Context, msg api.Output) error {
	var ae aerr.AggregateError
	for _, pub := range p.publishers {
		if err := pub.PublishOutputActual(ctx, msg); err != nil {
			ae.Add(err)
		}
	}
	return ae.AsError()
}

// PublishMotorActual sends the actual state of a motor output.
func (p *multiPublisher) PublishMotorActual(ctx context.Context, msg api.Motor) error {
	var ae aerr.AggregateError
	for _, pub := range p.publishers {
		if err := pub.PublishMotorActual(ctx, msg); err != nil {
			ae.Add(err)
		}
	}
	return ae.AsError()
}
