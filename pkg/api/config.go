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
	"github.com/pkg/errors"
)

// ModuleConfiguration holds the configuration of a single bench worker module.
type ModuleConfiguration struct {
	// List of devices attached to the module
	Devices []Device `yaml:"devices,omitempty" json:"devices,omitempty"`
	// List of real world objects controlled by the module
	Objects []Object `yaml:"objects,omitempty" json:"objects,omitempty"`
}

// GetDevices returns the devices of the module as a list of pointers.
func (c ModuleConfiguration) GetDevices() []*Device {
	result := make([]*Device, 0, len(c.Devices))
	for i := range c.Devices {
		result = append(result, &c.Devices[i])
	}
	return result
}

// GetObjects returns the objects of the module as a list of pointers.
func (c ModuleConfiguration) GetObjects() []*Object {
	result := make([]*Object, 0, len(c.Objects))
	for i := range c.Objects {
		result = append(result, &c.Objects[i])
	}
	return result
}

// DeviceByID returns the device with given ID.
// Returns false if not found.
func (c ModuleConfiguration) DeviceByID(id DeviceID) (Device, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// ObjectByID returns the object with given ID.
// Returns false if not found.
func (c ModuleConfiguration) ObjectByID(id ObjectID) (Object, bool) {
	for _, o := range c.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return Object{}, false
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c ModuleConfiguration) Validate() error {
	deviceIDs := make(map[DeviceID]struct{}, len(c.Devices))
	for _, d := range c.Devices {
		if err := d.Validate(); err != nil {
			return maskAny(err)
		}
		if _, found := deviceIDs[d.ID]; found {
			return errors.Wrapf(ValidationError, "Duplicate device ID '%s'", d.ID)
		}
		deviceIDs[d.ID] = struct{}{}
	}
	objectIDs := make(map[ObjectID]struct{}, len(c.Objects))
	for _, o := range c.Objects {
		if err := o.Validate(); err != nil {
			return maskAny(err)
		}
		if _, found := objectIDs[o.ID]; found {
			return errors.Wrapf(ValidationError, "Duplicate object ID '%s'", o.ID)
		}
		objectIDs[o.ID] = struct{}{}
		for _, conn := range o.Connections {
			for _, p := range conn.Pins {
				if _, found := c.DeviceByID(p.DeviceID); !found {
					return errors.Wrapf(ValidationError, "Device '%s' not found in connection '%s' in object '%s'", p.DeviceID, conn.Name, o.ID)
				}
			}
		}
	}
	return nil
}

// Validate the given type, returning nil on ok,
// or an error upon validation issues.
func (t DeviceType) Validate() error {
	switch t {
	case DeviceTypeMCP23008, DeviceTypeMCP23017, DeviceTypePCF8574,
		DeviceTypePCA9685, DeviceTypeGPIO, DeviceTypePWM,
		DeviceTypeMQTTGPIO, DeviceTypeMQTTPWM:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid device type '%s'", string(t))
	}
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.Wrap(ValidationError, "ID is empty")
	}
	if err := d.Type.Validate(); err != nil {
		return errors.Wrapf(ValidationError, "Error in Type of '%s': %s", d.ID, err.Error())
	}
	switch d.Type {
	case DeviceTypeGPIO, DeviceTypePWM:
		// Local devices have no address
	default:
		if d.Address == "" {
			return errors.Wrapf(ValidationError, "Address of '%s' is empty", d.ID)
		}
	}
	return nil
}

// Validate the given type, returning nil on ok,
// or an error upon validation issues.
func (t ObjectType) Validate() error {
	switch t {
	case ObjectTypeBinarySensor, ObjectTypeBinaryOutput,
		ObjectTypeMotor, ObjectTypeMotorRamp:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid object type '%s'", string(t))
	}
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (o Object) Validate() error {
	if o.ID == "" {
		return errors.Wrap(ValidationError, "ID is empty")
	}
	if err := o.Type.Validate(); err != nil {
		return errors.Wrapf(ValidationError, "Error in Type of '%s': %s", o.ID, err.Error())
	}
	seen := make(map[ConnectionName]struct{}, len(o.Connections))
	for _, conn := range o.Connections {
		if conn.Name == "" {
			return errors.Wrapf(ValidationError, "Connection without name in object '%s'", o.ID)
		}
		if _, found := seen[conn.Name]; found {
			return errors.Wrapf(ValidationError, "Duplicate connection '%s' in object '%s'", conn.Name, o.ID)
		}
		seen[conn.Name] = struct{}{}
		if len(conn.Pins) == 0 {
			return errors.Wrapf(ValidationError, "Connection '%s' in object '%s' has no pins", conn.Name, o.ID)
		}
		for _, p := range conn.Pins {
			if p.DeviceID == "" {
				return errors.Wrapf(ValidationError, "Pin without device in connection '%s' in object '%s'", conn.Name, o.ID)
			}
			if p.Index < 1 {
				return errors.Wrapf(ValidationError, "Pin index %d out of range in connection '%s' in object '%s'", p.Index, conn.Name, o.ID)
			}
		}
	}
	return nil
}
