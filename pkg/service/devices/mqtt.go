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

package devices

import (
	"fmt"
	"strings"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"

	"github.com/motorbench/BenchWorker/pkg/api"
)

const (
	mqttPinCount       = 256
	mqttPublishTimeout = time.Millisecond * 200
)

// MQTT is implemented by devices that are bridged over an MQTT broker
// and allow their per-pin topics to be overridden.
type MQTT interface {
	// Sets the state topic to use for the pin of the device with given index.
	SetStateTopic(index api.DeviceIndex, topic string) error
	// Sets the command topic to use for the pin of the device with given index.
	SetCommandTopic(index api.DeviceIndex, topic string) error
}

// defaultMQTTClientOptions prepares client options shared by all MQTT
// backed devices.
func defaultMQTTClientOptions(mqttBrokerAddress, mqttClientID string) *mqttapi.ClientOptions {
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + mqttBrokerAddress).
		SetClientID(mqttClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})
	return opts
}

// Parse a string into a bool
func parseBool(str string) (bool, error) {
	str = strings.ToLower(str)
	switch str {
	case "1", "t", "true", "on", "yes":
		return true, nil
	case "0", "f", "false", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool value '%s'", str)
}

// format a bool as string
func formatBool(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
