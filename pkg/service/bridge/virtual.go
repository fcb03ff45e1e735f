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

package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const virtualPinCount = 32

// virtualBridge implements the bridge without any hardware attached.
// Local pins live in memory. Input and output pins with the same number
// share their state, so a virtual bench can loop an output back into a
// trigger input.
type virtualBridge struct {
	log   zerolog.Logger
	mutex sync.Mutex
	pins  map[int]*virtualPin
}

// NewVirtualBridge implements the bridge for a virtual bench worker.
func NewVirtualBridge(log zerolog.Logger) (API, error) {
	return &virtualBridge{
		log:  log.With().Str("bridge", "virtual").Logger(),
		pins: make(map[int]*virtualPin),
	}, nil
}

// virtualPin holds the logical level of a single local pin.
// Levels are logical, not electrical.
type virtualPin struct {
	mutex sync.Mutex
	value bool
}

func (p *virtualPin) Read() (bool, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.value, nil
}

func (p *virtualPin) Write(value bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.value = value
	return nil
}

// pin returns the shared state of the pin with the given number,
// creating it when needed.
func (p *virtualBridge) pin(pinNumber int) (*virtualPin, error) {
	if pinNumber < 1 || pinNumber > virtualPinCount {
		return nil, fmt.Errorf("Invalid pin %d", pinNumber)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	result, found := p.pins[pinNumber]
	if !found {
		result = &virtualPin{}
		p.pins[pinNumber] = result
	}
	return result, nil
}

// Returns number of local pins
func (p *virtualBridge) PinCount() int {
	return virtualPinCount
}

// Input initializes a GPIO input pin with the given pin number.
func (p *virtualBridge) Input(pinNumber int, activeLow bool) (InputPin, error) {
	return p.pin(pinNumber)
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *virtualBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	pin, err := p.pin(pinNumber)
	if err != nil {
		return nil, err
	}
	if err := pin.Write(initialValue); err != nil {
		return nil, err
	}
	return pin, nil
}

// Turn Green status led on/off
func (p *virtualBridge) SetGreenLED(on bool) error {
	p.log.Debug().Bool("on", on).Msg("green led")
	return nil
}

// Turn Red status led on/off
func (p *virtualBridge) SetRedLED(on bool) error {
	p.log.Debug().Bool("on", on).Msg("red led")
	return nil
}

// Blink Green status led with given duration between on/off
func (p *virtualBridge) BlinkGreenLED(delay time.Duration) error {
	p.log.Debug().Dur("delay", delay).Msg("green led blinking")
	return nil
}

// Blink Red status led with given duration between on/off
func (p *virtualBridge) BlinkRedLED(delay time.Duration) error {
	p.log.Debug().Dur("delay", delay).Msg("red led blinking")
	return nil
}

// Open the I2C bus
func (p *virtualBridge) I2CBus() (I2CBus, error) {
	return p, nil
}

func (p *virtualBridge) Close() error {
	return nil
}

// Execute an option on the bus.
func (p *virtualBridge) Execute(ctx context.Context, address uint8, op func(ctx context.Context, dev I2CDevice) error) error {
	return fmt.Errorf("device %0x not found", address)
}

// DetectSlaveAddresses probes the bus to detect available addresses.
func (p *virtualBridge) DetectSlaveAddresses() []byte {
	return nil
}
