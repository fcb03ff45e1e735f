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

package api

import (
	"strconv"
	"strings"
)

// DeviceID is the unique identifier of a hardware device within a module.
type DeviceID string

// DeviceIndex is a 1-based pin or output index on a device.
type DeviceIndex int

// DeviceType identifies a type of hardware device (typically a chip name).
type DeviceType string

const (
	// DeviceTypeMCP23008 is an 8-pin I2C GPIO expander.
	DeviceTypeMCP23008 DeviceType = "mcp23008"
	// DeviceTypeMCP23017 is a 16-pin I2C GPIO expander.
	DeviceTypeMCP23017 DeviceType = "mcp23017"
	// DeviceTypePCF8574 is an 8-pin I2C GPIO expander.
	DeviceTypePCF8574 DeviceType = "pcf8574"
	// DeviceTypePCA9685 is a 16-output I2C PWM controller.
	DeviceTypePCA9685 DeviceType = "pca9685"
	// DeviceTypeGPIO is the set of GPIO pins on the local board header.
	DeviceTypeGPIO DeviceType = "gpio"
	// DeviceTypePWM is the set of hardware PWM channels on the local board.
	DeviceTypePWM DeviceType = "pwm"
	// DeviceTypeMQTTGPIO is a virtual GPIO device bridged over MQTT.
	DeviceTypeMQTTGPIO DeviceType = "mqtt-gpio"
	// DeviceTypeMQTTPWM is a virtual PWM device bridged over MQTT.
	DeviceTypeMQTTPWM DeviceType = "mqtt-pwm"
)

// Device holds the configuration of a single hardware device.
type Device struct {
	// Unique identifier of the device (instance)
	ID DeviceID `yaml:"id" json:"id"`
	// Type of the device
	Type DeviceType `yaml:"type" json:"type"`
	// Address is used to identify the device on a bus.
	// For I2C devices this is the bus address ("0x20"), for MQTT
	// devices the topic prefix. Local devices leave it empty.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

// ObjectID is the unique identifier of an object within a module.
type ObjectID string

// ObjectType identifies a type of real world objects.
type ObjectType string

const (
	// ObjectTypeBinarySensor is a single digital input (e.g. a pushbutton).
	ObjectTypeBinarySensor ObjectType = "binary-sensor"
	// ObjectTypeBinaryOutput is a single digital output (e.g. a lamp or relay).
	ObjectTypeBinaryOutput ObjectType = "binary-output"
	// ObjectTypeMotor is a request driven PWM motor output.
	ObjectTypeMotor ObjectType = "motor"
	// ObjectTypeMotorRamp is a pushbutton triggered motor duty ramp.
	ObjectTypeMotorRamp ObjectType = "motor-ramp"
)

// ConnectionName is the name of a connection between an object and device pins.
type ConnectionName string

const (
	// ConnectionNameSensor is the input pin of a binary-sensor.
	ConnectionNameSensor ConnectionName = "sensor"
	// ConnectionNameOutput is the output pin of a binary-output.
	ConnectionNameOutput ConnectionName = "output"
	// ConnectionNameMotor is the PWM output pin of a motor or motor-ramp.
	ConnectionNameMotor ConnectionName = "motor"
	// ConnectionNameTrigger is the input pin that starts a motor-ramp cycle.
	ConnectionNameTrigger ConnectionName = "trigger"
)

// ConfigKey is a key in the configuration map of a connection.
type ConfigKey string

const (
	// ConfigKeyInvert inverts the polarity of a pin ("true"/"false").
	ConfigKeyInvert ConfigKey = "invert"
	// ConfigKeyDebug enables verbose logging for a single object.
	ConfigKeyDebug ConfigKey = "debug"
	// ConfigKeyStep is the duty increment per ramp step.
	ConfigKeyStep ConfigKey = "step"
	// ConfigKeyStepDelay is the delay (ms) after each ramp step.
	ConfigKeyStepDelay ConfigKey = "step-delay"
	// ConfigKeyPollInterval is the idle poll interval (ms) of an input.
	ConfigKeyPollInterval ConfigKey = "poll-interval"
	// ConfigKeyMQTTStateTopic overrides the state topic of an MQTT device pin.
	ConfigKeyMQTTStateTopic ConfigKey = "mqtt-state-topic"
	// ConfigKeyMQTTCommandTopic overrides the command topic of an MQTT device pin.
	ConfigKeyMQTTCommandTopic ConfigKey = "mqtt-command-topic"
)

// DevicePin identifies a single pin of a hardware device.
type DevicePin struct {
	// Unique identifier of the device that contains this pin.
	DeviceID DeviceID `yaml:"device" json:"device"`
	// Pin index on the device (1...)
	Index DeviceIndex `yaml:"index" json:"index"`
}

// Connection links an object to one or more device pins under a
// type specific name.
type Connection struct {
	// Name of the connection, specific to the type of object.
	Name ConnectionName `yaml:"name" json:"name"`
	// Pins used by this connection.
	Pins []DevicePin `yaml:"pins" json:"pins"`
	// Configuration of this connection.
	Configuration map[ConfigKey]string `yaml:"configuration,omitempty" json:"configuration,omitempty"`
}

// GetConfig returns the configuration value for the given key.
// Returns false if no such key exists.
func (c Connection) GetConfig(key ConfigKey) (string, bool) {
	value, found := c.Configuration[key]
	return value, found
}

// GetStringConfig returns the configuration value for the given key,
// or an empty string when absent.
func (c Connection) GetStringConfig(key ConfigKey) string {
	value, _ := c.GetConfig(key)
	return value
}

// GetBoolConfig returns the configuration value for the given key
// interpreted as a boolean. Absent or unparsable values yield false.
func (c Connection) GetBoolConfig(key ConfigKey) bool {
	value, found := c.GetConfig(key)
	if !found {
		return false
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return result
}

// GetIntConfig returns the configuration value for the given key
// interpreted as an integer. Absent or unparsable values yield 0.
func (c Connection) GetIntConfig(key ConfigKey) int {
	return c.GetIntConfigWithDefault(key, 0)
}

// GetIntConfigWithDefault returns the configuration value for the given
// key interpreted as an integer, or the given default when the key is
// absent or not a valid integer.
func (c Connection) GetIntConfigWithDefault(key ConfigKey, defaultValue int) int {
	value, found := c.GetConfig(key)
	if !found {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

// Object holds the configuration of a single real world object.
type Object struct {
	// Unique ID of the object
	ID ObjectID `yaml:"id" json:"id"`
	// Type of object
	Type ObjectType `yaml:"type" json:"type"`
	// Connections used by this object.
	// The names used are specific to the type of object.
	Connections []Connection `yaml:"connections,omitempty" json:"connections,omitempty"`
}

// ConnectionByName returns the connection with given name.
// Returns false if not found.
func (o Object) ConnectionByName(name ConnectionName) (*Connection, bool) {
	for i, c := range o.Connections {
		if c.Name == name {
			return &o.Connections[i], true
		}
	}
	return nil, false
}

// ObjectAddress is the global address of an object: "<module>/<object>".
type ObjectAddress string

// GlobalModuleID is the module ID used in addresses that apply to
// objects on all modules.
const GlobalModuleID = "global"

// JoinModuleLocal builds the global address of an object from its
// module ID and local object ID.
func JoinModuleLocal(moduleID, localID string) ObjectAddress {
	return ObjectAddress(moduleID + "/" + localID)
}

// Split returns the module ID and local object ID of the address.
// Addresses without a module part yield an empty module ID.
func (a ObjectAddress) Split() (moduleID, localID string) {
	if idx := strings.LastIndex(string(a), "/"); idx >= 0 {
		return string(a)[:idx], string(a)[idx+1:]
	}
	return "", string(a)
}
