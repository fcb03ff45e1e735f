package objects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/devices"
)

func sensorTestConfig(config map[api.ConfigKey]string) api.Object {
	return api.Object{
		ID:   "button",
		Type: api.ObjectTypeBinarySensor,
		Connections: []api.Connection{
			{
				Name:          api.ConnectionNameSensor,
				Pins:          []api.DevicePin{{DeviceID: "btn", Index: 1}},
				Configuration: config,
			},
		},
	}
}

func newTestSensor(t *testing.T, gpio *fakeGPIO, config map[api.ConfigKey]string) *binarySensor {
	t.Helper()
	devService := newFakeDeviceService().add("btn", gpio)
	cfg := sensorTestConfig(config)
	obj, err := newBinarySensor("test", cfg.ID, api.JoinModuleLocal("mod1", string(cfg.ID)), cfg, zerolog.Nop(), devService)
	if err != nil {
		t.Fatalf("newBinarySensor failed: %v", err)
	}
	return obj.(*binarySensor)
}

func runSensor(t *testing.T, ctx context.Context, o *binarySensor, statuses StatusService) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := o.Run(ctx, nil, statuses, "mod1"); err != nil {
			t.Errorf("Run returned unexpected error: %v", err)
		}
	}()
	return done
}

func sensorValues(statuses *fakeStatuses) []int32 {
	var result []int32
	for _, s := range statuses.sensorActuals() {
		result = append(result, s.GetActual().GetValue())
	}
	return result
}

// The initial value is published right away, changes as they happen.
func TestBinarySensorPublishesChanges(t *testing.T) {
	gpio := newFakeGPIO(8)
	statuses := &fakeStatuses{}
	o := newTestSensor(t, gpio, map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := runSensor(t, ctx, o, statuses)
	waitFor(t, time.Second*5, "initial actual", func() bool {
		return len(statuses.sensorActuals()) >= 1
	})
	gpio.setValue(1, true)
	waitFor(t, time.Second*5, "actual after press", func() bool {
		return len(statuses.sensorActuals()) >= 2
	})
	gpio.setValue(1, false)
	waitFor(t, time.Second*5, "actual after release", func() bool {
		return len(statuses.sensorActuals()) >= 3
	})
	cancel()
	<-done

	values := sensorValues(statuses)
	expected := []int32{0, 1, 0}
	if len(values) != len(expected) {
		t.Fatalf("Expected %d actuals, got %d: %v", len(expected), len(values), values)
	}
	for i, v := range values {
		if v != expected[i] {
			t.Errorf("Expected value %d at actual %d, got %d", expected[i], i, v)
		}
	}
}

// With invert set, a physical low level reads as asserted.
func TestBinarySensorInverted(t *testing.T) {
	gpio := newFakeGPIO(8)
	statuses := &fakeStatuses{}
	o := newTestSensor(t, gpio, map[api.ConfigKey]string{
		api.ConfigKeyInvert:       "true",
		api.ConfigKeyPollInterval: "1",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := runSensor(t, ctx, o, statuses)
	waitFor(t, time.Second*5, "initial actual", func() bool {
		return len(statuses.sensorActuals()) >= 1
	})
	gpio.setValue(1, true)
	waitFor(t, time.Second*5, "actual after change", func() bool {
		return len(statuses.sensorActuals()) >= 2
	})
	cancel()
	<-done

	values := sensorValues(statuses)
	if values[0] != 1 {
		t.Errorf("Expected initial value 1, got %d", values[0])
	}
	if values[1] != 0 {
		t.Errorf("Expected value 0 after change, got %d", values[1])
	}
}

// A failing input is reported as asserted.
func TestBinarySensorReadErrorReportsAsserted(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.readFunc = func(pin api.DeviceIndex, reads int) (bool, error) {
		return false, errors.New("bus error")
	}
	statuses := &fakeStatuses{}
	o := newTestSensor(t, gpio, map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := runSensor(t, ctx, o, statuses)
	waitFor(t, time.Second*5, "initial actual", func() bool {
		return len(statuses.sensorActuals()) >= 1
	})
	cancel()
	<-done

	if values := sensorValues(statuses); values[0] != 1 {
		t.Errorf("Expected a failing input to report 1, got %d", values[0])
	}
}

func TestBinarySensorConfigure(t *testing.T) {
	gpio := newFakeGPIO(8)
	o := newTestSensor(t, gpio, nil)

	if err := o.Configure(context.Background()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if dir := gpio.direction(1); dir != devices.PinDirectionInput {
		t.Errorf("Expected sensor pin to be an input, got %v", dir)
	}
}

func TestNewBinarySensorErrors(t *testing.T) {
	gpio := newFakeGPIO(8)
	pwm := newFakePWM(255)
	devService := newFakeDeviceService().add("btn", gpio).add("mot", pwm)

	tests := []struct {
		name   string
		config api.Object
	}{
		{"wrong-type", api.Object{ID: "x", Type: api.ObjectTypeMotor, Connections: []api.Connection{
			{Name: api.ConnectionNameSensor, Pins: []api.DevicePin{{DeviceID: "btn", Index: 1}}},
		}}},
		{"missing-connection", api.Object{ID: "x", Type: api.ObjectTypeBinarySensor}},
		{"not-a-gpio", api.Object{ID: "x", Type: api.ObjectTypeBinarySensor, Connections: []api.Connection{
			{Name: api.ConnectionNameSensor, Pins: []api.DevicePin{{DeviceID: "mot", Index: 1}}},
		}}},
		{"unknown-device", api.Object{ID: "x", Type: api.ObjectTypeBinarySensor, Connections: []api.Connection{
			{Name: api.ConnectionNameSensor, Pins: []api.DevicePin{{DeviceID: "nope", Index: 1}}},
		}}},
		{"pin-out-of-range", api.Object{ID: "x", Type: api.ObjectTypeBinarySensor, Connections: []api.Connection{
			{Name: api.ConnectionNameSensor, Pins: []api.DevicePin{{DeviceID: "btn", Index: 9}}},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := newBinarySensor("test", tc.config.ID, "mod1/x", tc.config, zerolog.Nop(), devService); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
