package objects

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/devices"
)

func rampTestConfig(triggerConfig, motorConfig map[api.ConfigKey]string) api.Object {
	return api.Object{
		ID:   "ramp",
		Type: api.ObjectTypeMotorRamp,
		Connections: []api.Connection{
			{
				Name:          api.ConnectionNameTrigger,
				Pins:          []api.DevicePin{{DeviceID: "btn", Index: 1}},
				Configuration: triggerConfig,
			},
			{
				Name:          api.ConnectionNameMotor,
				Pins:          []api.DevicePin{{DeviceID: "mot", Index: 1}},
				Configuration: motorConfig,
			},
		},
	}
}

func newTestRamp(t *testing.T, gpio *fakeGPIO, pwm *fakePWM, triggerConfig, motorConfig map[api.ConfigKey]string) *motorRamp {
	t.Helper()
	devService := newFakeDeviceService().add("btn", gpio).add("mot", pwm)
	config := rampTestConfig(triggerConfig, motorConfig)
	obj, err := newMotorRamp("test", config.ID, api.JoinModuleLocal("mod1", string(config.ID)), config, zerolog.Nop(), devService)
	if err != nil {
		t.Fatalf("newMotorRamp failed: %v", err)
	}
	return obj.(*motorRamp)
}

func runRamp(t *testing.T, ctx context.Context, o *motorRamp, statuses StatusService) <-chan struct{} {
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

// While the trigger stays off, the motor output is never written and the
// loop keeps polling the trigger.
func TestMotorRampIdle(t *testing.T) {
	gpio := newFakeGPIO(8)
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"},
		nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	waitFor(t, time.Second*5, "trigger polls", func() bool {
		return gpio.readCount(1) >= 10
	})
	cancel()
	<-done

	if got := pwm.writeCount(); got != 0 {
		t.Errorf("Expected no motor writes while idle, got %d", got)
	}
	motors := statuses.motorActuals()
	if len(motors) == 0 {
		t.Fatal("Expected an idle actual to be published")
	}
	for i, m := range motors {
		if s := m.GetActual().GetState(); s != api.RampStateIdle {
			t.Errorf("Expected actual %d state %s, got %s", i, api.RampStateIdle, s)
		}
		if d := m.GetActual().GetDuty(); d != 0 {
			t.Errorf("Expected actual %d duty 0, got %d", i, d)
		}
	}
}

// A single trigger assert runs one complete cycle: every duty value from
// 0 up to 255 and back down to 0 is written, 512 writes in total, and
// the peak value is written twice.
func TestMotorRampFullCycle(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.readFunc = func(pin api.DeviceIndex, reads int) (bool, error) {
		// Assert the trigger on the first poll only
		return reads == 0, nil
	}
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"},
		map[api.ConfigKey]string{api.ConfigKeyStepDelay: "0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	waitFor(t, time.Second*10, "ramp cycle to complete", func() bool {
		return pwm.writeCount() >= 512
	})
	cancel()
	<-done

	writes := pwm.pwmWrites()
	if len(writes) != 512 {
		t.Fatalf("Expected 512 writes, got %d", len(writes))
	}
	for i, w := range writes {
		expected := uint32(i)
		if i >= 256 {
			expected = uint32(511 - i)
		}
		if w.OffValue != expected {
			t.Fatalf("Expected duty %d at write %d, got %d", expected, i, w.OffValue)
		}
		if !w.Enabled {
			t.Errorf("Expected write %d to be enabled", i)
		}
		if w.Index != 1 {
			t.Errorf("Expected write %d on output 1, got %d", i, w.Index)
		}
	}

	// Collapse repeated values; the peak is the only repeat.
	var distinct []uint32
	for _, w := range writes {
		if len(distinct) == 0 || distinct[len(distinct)-1] != w.OffValue {
			distinct = append(distinct, w.OffValue)
		}
	}
	if len(distinct) != 511 {
		t.Errorf("Expected 511 distinct duty values, got %d", len(distinct))
	}
	if distinct[0] != 0 || distinct[len(distinct)-1] != 0 {
		t.Errorf("Expected cycle to start and end at 0, got %d and %d", distinct[0], distinct[len(distinct)-1])
	}

	motors := statuses.motorActuals()
	if len(motors) < 3 {
		t.Fatalf("Expected at least 3 motor actuals, got %d", len(motors))
	}
	if s := motors[0].GetActual().GetState(); s != api.RampStateRampingUp {
		t.Errorf("Expected first actual state %s, got %s", api.RampStateRampingUp, s)
	}
	if d := motors[0].GetActual().GetDuty(); d != 0 {
		t.Errorf("Expected first actual duty 0, got %d", d)
	}
	if s := motors[1].GetActual().GetState(); s != api.RampStateRampingDown {
		t.Errorf("Expected second actual state %s, got %s", api.RampStateRampingDown, s)
	}
	if d := motors[1].GetActual().GetDuty(); d != 255 {
		t.Errorf("Expected second actual duty 255, got %d", d)
	}
	if s := motors[2].GetActual().GetState(); s != api.RampStateIdle {
		t.Errorf("Expected third actual state %s, got %s", api.RampStateIdle, s)
	}
	if d := motors[2].GetActual().GetDuty(); d != 0 {
		t.Errorf("Expected third actual duty 0, got %d", d)
	}
}

// The trigger is only sampled between cycles, so whatever the input does
// while a cycle is in progress cannot cut it short.
func TestMotorRampTriggerIgnoredDuringCycle(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.readFunc = func(pin api.DeviceIndex, reads int) (bool, error) {
		return reads == 0, nil
	}
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "200"},
		map[api.ConfigKey]string{api.ConfigKeyStepDelay: "0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	waitFor(t, time.Second*10, "ramp cycle to complete", func() bool {
		return pwm.writeCount() >= 512
	})
	if got := gpio.readCount(1); got != 1 {
		t.Errorf("Expected exactly 1 trigger read during the cycle, got %d", got)
	}
	cancel()
	<-done
}

// A trigger that stays asserted starts the next cycle right after the
// previous one completed.
func TestMotorRampRetriggers(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.setValue(1, true)
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"},
		map[api.ConfigKey]string{api.ConfigKeyStepDelay: "0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	waitFor(t, time.Second*10, "two ramp cycles to complete", func() bool {
		return pwm.writeCount() >= 1024
	})
	cancel()
	<-done

	writes := pwm.pwmWrites()
	for _, i := range []int{512, 767, 768, 1023} {
		expected := uint32(i - 512)
		if i >= 768 {
			expected = uint32(1023 - i)
		}
		if writes[i].OffValue != expected {
			t.Errorf("Expected duty %d at write %d, got %d", expected, i, writes[i].OffValue)
		}
	}
}

// A configured step size shortens the sweep but still covers both bounds.
func TestMotorRampStepFive(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.readFunc = func(pin api.DeviceIndex, reads int) (bool, error) {
		return reads == 0, nil
	}
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"},
		map[api.ConfigKey]string{
			api.ConfigKeyStep:      "5",
			api.ConfigKeyStepDelay: "0",
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	waitFor(t, time.Second*5, "ramp cycle to complete", func() bool {
		return pwm.writeCount() >= 104
	})
	cancel()
	<-done

	var expected []uint32
	for d := 0; d <= 255; d += 5 {
		expected = append(expected, uint32(d))
	}
	for d := 255; d >= 0; d -= 5 {
		expected = append(expected, uint32(d))
	}
	writes := pwm.pwmWrites()
	if len(writes) != len(expected) {
		t.Fatalf("Expected %d writes, got %d", len(expected), len(writes))
	}
	for i, w := range writes {
		if w.OffValue != expected[i] {
			t.Errorf("Expected duty %d at write %d, got %d", expected[i], i, w.OffValue)
		}
	}
}

// A step size that does not divide 255 is clamped at both bounds.
func TestMotorRampStepClamped(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.readFunc = func(pin api.DeviceIndex, reads int) (bool, error) {
		return reads == 0, nil
	}
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"},
		map[api.ConfigKey]string{
			api.ConfigKeyStep:      "100",
			api.ConfigKeyStepDelay: "0",
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	expected := []uint32{0, 100, 200, 255, 255, 155, 55, 0}
	waitFor(t, time.Second*5, "ramp cycle to complete", func() bool {
		return pwm.writeCount() >= len(expected)
	})
	cancel()
	<-done

	writes := pwm.pwmWrites()
	if len(writes) != len(expected) {
		t.Fatalf("Expected %d writes, got %d", len(expected), len(writes))
	}
	for i, w := range writes {
		if w.OffValue != expected[i] {
			t.Errorf("Expected duty %d at write %d, got %d", expected[i], i, w.OffValue)
		}
	}
}

// Duty values are scaled onto the native range of the PWM device.
func TestMotorRampScaledOutput(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.readFunc = func(pin api.DeviceIndex, reads int) (bool, error) {
		return reads == 0, nil
	}
	pwm := newFakePWM(4095)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"},
		map[api.ConfigKey]string{
			api.ConfigKeyStep:      "255",
			api.ConfigKeyStepDelay: "0",
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	expected := []uint32{0, 4095, 4095, 0}
	waitFor(t, time.Second*5, "ramp cycle to complete", func() bool {
		return pwm.writeCount() >= len(expected)
	})
	cancel()
	<-done

	writes := pwm.pwmWrites()
	if len(writes) != len(expected) {
		t.Fatalf("Expected %d writes, got %d", len(expected), len(writes))
	}
	for i, w := range writes {
		if w.OffValue != expected[i] {
			t.Errorf("Expected value %d at write %d, got %d", expected[i], i, w.OffValue)
		}
	}
}

// With an inverted trigger a physical low level starts the cycle.
func TestMotorRampInvertedTrigger(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.readFunc = func(pin api.DeviceIndex, reads int) (bool, error) {
		// Low on the first poll, high afterwards
		return reads != 0, nil
	}
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{
			api.ConfigKeyInvert:       "true",
			api.ConfigKeyPollInterval: "1",
		},
		map[api.ConfigKey]string{
			api.ConfigKeyStep:      "255",
			api.ConfigKeyStepDelay: "0",
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	expected := []uint32{0, 255, 255, 0}
	waitFor(t, time.Second*5, "ramp cycle to complete", func() bool {
		return pwm.writeCount() >= len(expected)
	})
	cancel()
	<-done

	writes := pwm.pwmWrites()
	if len(writes) != len(expected) {
		t.Fatalf("Expected %d writes, got %d", len(expected), len(writes))
	}
	for i, w := range writes {
		if w.OffValue != expected[i] {
			t.Errorf("Expected duty %d at write %d, got %d", expected[i], i, w.OffValue)
		}
	}
}

// Cancellation is the only way to end a cycle early.
// The motor is stopped before Run returns.
func TestMotorRampCancelMidCycle(t *testing.T) {
	gpio := newFakeGPIO(8)
	gpio.setValue(1, true)
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"},
		map[api.ConfigKey]string{api.ConfigKeyStepDelay: "20"})

	ctx, cancel := context.WithCancel(context.Background())
	done := runRamp(t, ctx, o, statuses)
	waitFor(t, time.Second*5, "ramp up to make progress", func() bool {
		return pwm.writeCount() >= 5
	})
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("Timeout waiting for Run to return")
	}

	writes := pwm.pwmWrites()
	if len(writes) >= 512 {
		t.Fatalf("Expected the cycle to be cut short, got %d writes", len(writes))
	}
	last := writes[len(writes)-1]
	if last.OffValue != 0 {
		t.Errorf("Expected motor to be stopped on cancel, got duty %d", last.OffValue)
	}
	if o.state != api.RampStateIdle {
		t.Errorf("Expected state %s after cancel, got %s", api.RampStateIdle, o.state)
	}
}

func TestMotorRampConfigure(t *testing.T) {
	gpio := newFakeGPIO(8)
	pwm := newFakePWM(255)
	o := newTestRamp(t, gpio, pwm, nil, nil)

	if err := o.Configure(context.Background()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if dir := gpio.direction(1); dir != devices.PinDirectionInput {
		t.Errorf("Expected trigger pin to be an input, got %v", dir)
	}
	writes := pwm.pwmWrites()
	if len(writes) != 1 {
		t.Fatalf("Expected 1 motor write, got %d", len(writes))
	}
	if writes[0].OffValue != 0 {
		t.Errorf("Expected duty 0, got %d", writes[0].OffValue)
	}
}

func TestMotorRampPowerMessage(t *testing.T) {
	gpio := newFakeGPIO(8)
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestRamp(t, gpio, pwm,
		map[api.ConfigKey]string{api.ConfigKeyPollInterval: "1"},
		nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runRamp(t, ctx, o, statuses)
	waitFor(t, time.Second*5, "initial actual", func() bool {
		return len(statuses.motorActuals()) >= 1
	})
	count := len(statuses.motorActuals())
	if err := o.ProcessPowerMessage(ctx, api.PowerState{Enabled: true}); err != nil {
		t.Fatalf("ProcessPowerMessage failed: %v", err)
	}
	waitFor(t, time.Second*5, "forced actual after power on", func() bool {
		return len(statuses.motorActuals()) > count
	})
	cancel()
	<-done
}

func TestNewMotorRampErrors(t *testing.T) {
	gpio := newFakeGPIO(8)
	pwm := newFakePWM(255)
	devService := newFakeDeviceService().add("btn", gpio).add("mot", pwm)

	triggerConn := api.Connection{Name: api.ConnectionNameTrigger, Pins: []api.DevicePin{{DeviceID: "btn", Index: 1}}}
	motorConn := api.Connection{Name: api.ConnectionNameMotor, Pins: []api.DevicePin{{DeviceID: "mot", Index: 1}}}

	tests := []struct {
		name   string
		config api.Object
	}{
		{"wrong-type", api.Object{ID: "x", Type: api.ObjectTypeBinarySensor, Connections: []api.Connection{triggerConn, motorConn}}},
		{"missing-trigger", api.Object{ID: "x", Type: api.ObjectTypeMotorRamp, Connections: []api.Connection{motorConn}}},
		{"missing-motor", api.Object{ID: "x", Type: api.ObjectTypeMotorRamp, Connections: []api.Connection{triggerConn}}},
		{"unknown-trigger-device", api.Object{ID: "x", Type: api.ObjectTypeMotorRamp, Connections: []api.Connection{
			{Name: api.ConnectionNameTrigger, Pins: []api.DevicePin{{DeviceID: "nope", Index: 1}}},
			motorConn,
		}}},
		{"trigger-not-gpio", api.Object{ID: "x", Type: api.ObjectTypeMotorRamp, Connections: []api.Connection{
			{Name: api.ConnectionNameTrigger, Pins: []api.DevicePin{{DeviceID: "mot", Index: 1}}},
			motorConn,
		}}},
		{"motor-not-pwm", api.Object{ID: "x", Type: api.ObjectTypeMotorRamp, Connections: []api.Connection{
			triggerConn,
			{Name: api.ConnectionNameMotor, Pins: []api.DevicePin{{DeviceID: "btn", Index: 1}}},
		}}},
		{"trigger-pin-out-of-range", api.Object{ID: "x", Type: api.ObjectTypeMotorRamp, Connections: []api.Connection{
			{Name: api.ConnectionNameTrigger, Pins: []api.DevicePin{{DeviceID: "btn", Index: 99}}},
			motorConn,
		}}},
		{"two-motor-pins", api.Object{ID: "x", Type: api.ObjectTypeMotorRamp, Connections: []api.Connection{
			triggerConn,
			{Name: api.ConnectionNameMotor, Pins: []api.DevicePin{{DeviceID: "mot", Index: 1}, {DeviceID: "mot", Index: 2}}},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := newMotorRamp("test", tc.config.ID, "mod1/x", tc.config, zerolog.Nop(), devService); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
