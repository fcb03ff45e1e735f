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

package devices

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
)

// mqttPWM is a PWM device that lives on an MQTT broker.
// Commands carry the duty as decimal integer payload in 0..255, a
// disabled output is published as 0.
type mqttPWM struct {
	log               zerolog.Logger
	mutex             sync.Mutex
	onActive          func()
	topicPrefix       string
	mqttClientID      string
	mqttBrokerAddress string

	states        map[string]pwmState
	client        mqttapi.Client
	stateTopics   map[api.DeviceIndex]string
	commandTopics map[api.DeviceIndex]string
}

const mqttPWMMaxValue = 255

// newMQTTPWM creates a PWM device that lives on an MQTT broker.
func newMQTTPWM(log zerolog.Logger, id api.DeviceID, onActive func(), moduleID, topicPrefix, mqttBrokerAddress string) (PWM, error) {
	pwm := &mqttPWM{
		log:               log,
		onActive:          onActive,
		topicPrefix:       topicPrefix,
		mqttClientID:      fmt.Sprintf("%s-%s", moduleID, id),
		mqttBrokerAddress: mqttBrokerAddress,
		states:            make(map[string]pwmState),
		stateTopics:       make(map[api.DeviceIndex]string),
		commandTopics:     make(map[api.DeviceIndex]string),
	}
	for pin := api.DeviceIndex(1); int(pin) <= pwm.PWMPinCount(); pin++ {
		pwm.stateTopics[pin] = fmt.Sprintf("%spin%d/state", topicPrefix, pin)
		pwm.commandTopics[pin] = fmt.Sprintf("%spin%d/command", topicPrefix, pin)
	}
	return pwm, nil
}

// Configure is called once to put the device in the desired state.
func (d *mqttPWM) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Prepare MQTT client options
	opts := defaultMQTTClientOptions(d.mqttBrokerAddress, d.mqttClientID)
	opts.SetOnConnectHandler(func(c mqttapi.Client) {
		d.log.Debug().Msg("Connected to MQTT")
		topic := d.topicPrefix + "#"
		if token := d.client.Subscribe(topic, 0, d.onMessage); token.Wait() && token.Error() != nil {
			d.log.Error().Err(token.Error()).
				Msgf("failed to subscribe to '%s'", topic)
			c.Disconnect(500)
		} else {
			d.log.Debug().Msgf("Subscribed to MQTT topic '%s'", topic)
			d.onActive()
		}
	})

	// Connect client
	d.client = mqttapi.NewClient(opts)
	if token := d.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt: %w", token.Error())
	}

	return nil
}

// Close brings the device back to a safe state.
func (d *mqttPWM) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.client != nil {
		d.client.Disconnect(250)
		d.client = nil
	}

	// Restore all to defaults
	d.onActive()
	return nil
}

// Receive messages
func (d *mqttPWM) onMessage(client mqttapi.Client, msg mqttapi.Message) {
	topic := strings.TrimPrefix(msg.Topic(), d.topicPrefix)
	if !strings.HasSuffix(topic, "/state") {
		// Not a valid message
		return
	}
	stateKey := strings.TrimSuffix(topic, "/state")
	value, err := strconv.ParseUint(string(msg.Payload()), 10, 32)
	if err != nil {
		d.log.Debug().
			Str("topic", msg.Topic()).
			Str("payload", string(msg.Payload())).
			Msg("ignoring state message with non numeric payload")
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.states[stateKey] = pwmState{
		OnValue:  0,
		OffValue: uint32(value),
		Enabled:  value > 0,
	}
}

// PWMPinCount returns the number of PWM output pins of the device
func (d *mqttPWM) PWMPinCount() int {
	return mqttPinCount
}

// MaxPWMValue returns the maximum valid value for onValue or offValue.
func (d *mqttPWM) MaxPWMValue() uint32 {
	return mqttPWMMaxValue
}

// SetPWM the output at given index (1...) to the given value
func (d *mqttPWM) SetPWM(ctx context.Context, pin api.DeviceIndex, onValue, offValue uint32, enabled bool) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	duty := offValue
	if duty > mqttPWMMaxValue {
		duty = mqttPWMMaxValue
	}
	if !enabled {
		duty = 0
	}
	topic := d.commandTopics[pin]
	payload := strconv.FormatUint(uint64(duty), 10)
	retain := true
	token := d.client.Publish(topic, 0, retain, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		d.log.Error().Err(token.Error()).
			Str("topic", topic).
			Str("payload", payload).
			Msg("failed to deliver MQTT command in time")
	} else {
		stateKey := strings.TrimSuffix(strings.TrimPrefix(topic, d.topicPrefix), "/command")
		d.states[stateKey] = pwmState{
			OnValue:  onValue,
			OffValue: offValue,
			Enabled:  enabled,
		}
		d.onActive()
	}

	return nil
}

// GetPWM the output at given index (1...)
// Returns onValue,offValue,enabled,error
func (d *mqttPWM) GetPWM(ctx context.Context, pin api.DeviceIndex) (uint32, uint32, bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	stateKey := strings.TrimSuffix(strings.TrimPrefix(d.stateTopics[pin], d.topicPrefix), "/state")
	if state, ok := d.states[stateKey]; ok {
		return state.OnValue, state.OffValue, state.Enabled, nil
	}
	return 0, 0, false, fmt.Errorf("no state found for pin %d", pin)
}

// Sets the state topic to use for the pin of the device with given index.
// Empty topics are ignored.
func (d *mqttPWM) SetStateTopic(index api.DeviceIndex, topic string) error {
	if topic == "" {
		return nil
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if index < 1 || int(index) > d.PWMPinCount() {
		return fmt.Errorf("invalid index %d", index)
	}
	if !strings.HasPrefix(topic, d.topicPrefix) {
		return fmt.Errorf("topic '%s' is missing prefix '%s' at index %d", topic, d.topicPrefix, index)
	}
	if !strings.HasSuffix(topic, "/state") {
		return fmt.Errorf("topic '%s' is missing suffix '/state' at index %d", topic, index)
	}
	d.stateTopics[index] = topic
	return nil
}

// Sets the command topic to use for the pin of the device with given index.
// Empty topics are ignored.
func (d *mqttPWM) SetCommandTopic(index api.DeviceIndex, topic string) error {
	if topic == "" {
		return nil
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if index < 1 || int(index) > d.PWMPinCount() {
		return fmt.Errorf("invalid index %d", index)
	}
	if !strings.HasPrefix(topic, d.topicPrefix) {
		return fmt.Errorf("topic '%s' is missing prefix '%s' at index %d", topic, d.topicPrefix, index)
	}
	if !strings.HasSuffix(topic, "/command") {
		return fmt.Errorf("topic '%s' is missing suffix '/command' at index %d", topic, index)
	}
	d.commandTopics[index] = topic
	return nil
}
