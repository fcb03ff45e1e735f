package objects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
)

func motorTestConfig(config map[api.ConfigKey]string) api.Object {
	return api.Object{
		ID:   "fan",
		Type: api.ObjectTypeMotor,
		Connections: []api.Connection{
			{
				Name:          api.ConnectionNameMotor,
				Pins:          []api.DevicePin{{DeviceID: "mot", Index: 1}},
				Configuration: config,
			},
		},
	}
}

func newTestMotor(t *testing.T, pwm *fakePWM, config map[api.ConfigKey]string) *motor {
	t.Helper()
	devService := newFakeDeviceService().add("mot", pwm)
	cfg := motorTestConfig(config)
	obj, err := newMotor("test", cfg.ID, api.JoinModuleLocal("mod1", string(cfg.ID)), cfg, zerolog.Nop(), devService)
	if err != nil {
		t.Fatalf("newMotor failed: %v", err)
	}
	return obj.(*motor)
}

func runMotor(t *testing.T, ctx context.Context, o *motor, statuses StatusService) <-chan struct{} {
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

// hasMotorActual reports whether an actual with the given request and
// actual duty has been published.
func hasMotorActual(statuses *fakeStatuses, request, actual int32) bool {
	for _, m := range statuses.motorActuals() {
		if m.GetRequest().GetDuty() == request && m.GetActual().GetDuty() == actual {
			return true
		}
	}
	return false
}

// A request moves the duty towards the target in configured steps.
// The output is disabled once the duty is back at 0.
func TestMotorSlewToTarget(t *testing.T) {
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestMotor(t, pwm, map[api.ConfigKey]string{
		api.ConfigKeyStep:      "5",
		api.ConfigKeyStepDelay: "1",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runMotor(t, ctx, o, statuses)

	if err := o.ProcessMessage(ctx, api.Motor{Address: o.address, Request: &api.MotorState{Duty: 10}}); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	waitFor(t, time.Second*5, "duty 10 to be reached", func() bool {
		return hasMotorActual(statuses, 10, 10)
	})

	if err := o.ProcessMessage(ctx, api.Motor{Address: o.address, Request: &api.MotorState{Duty: 0}}); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	waitFor(t, time.Second*5, "duty 0 to be reached", func() bool {
		return pwm.writeCount() >= 4
	})
	cancel()
	<-done

	expected := []pwmWrite{
		{Index: 1, OffValue: 5, Enabled: true},
		{Index: 1, OffValue: 10, Enabled: true},
		{Index: 1, OffValue: 5, Enabled: true},
		{Index: 1, OffValue: 0, Enabled: false},
	}
	writes := pwm.pwmWrites()
	if len(writes) != len(expected) {
		t.Fatalf("Expected %d writes, got %d: %+v", len(expected), len(writes), writes)
	}
	for i, w := range writes {
		if w != expected[i] {
			t.Errorf("Expected write %d to be %+v, got %+v", i, expected[i], w)
		}
	}
}

// Requested duties outside 0..255 are clamped.
func TestMotorClampsRequest(t *testing.T) {
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestMotor(t, pwm, map[api.ConfigKey]string{
		api.ConfigKeyStep:      "255",
		api.ConfigKeyStepDelay: "1",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runMotor(t, ctx, o, statuses)

	if err := o.ProcessMessage(ctx, api.Motor{Address: o.address, Request: &api.MotorState{Duty: 500}}); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	waitFor(t, time.Second*5, "duty 255 to be reached", func() bool {
		return hasMotorActual(statuses, 255, 255)
	})

	if err := o.ProcessMessage(ctx, api.Motor{Address: o.address, Request: &api.MotorState{Duty: -3}}); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	waitFor(t, time.Second*5, "duty 0 to be reached", func() bool {
		return pwm.writeCount() >= 2
	})
	cancel()
	<-done

	writes := pwm.pwmWrites()
	if writes[0].OffValue != 255 || !writes[0].Enabled {
		t.Errorf("Expected first write to be duty 255 enabled, got %+v", writes[0])
	}
	if writes[1].OffValue != 0 || writes[1].Enabled {
		t.Errorf("Expected second write to be duty 0 disabled, got %+v", writes[1])
	}
}

// Losing power brings the target duty back to 0.
func TestMotorPowerOff(t *testing.T) {
	pwm := newFakePWM(255)
	statuses := &fakeStatuses{}
	o := newTestMotor(t, pwm, map[api.ConfigKey]string{
		api.ConfigKeyStep:      "200",
		api.ConfigKeyStepDelay: "1",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runMotor(t, ctx, o, statuses)

	if err := o.ProcessMessage(ctx, api.Motor{Address: o.address, Request: &api.MotorState{Duty: 200}}); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	waitFor(t, time.Second*5, "duty 200 to be reached", func() bool {
		return hasMotorActual(statuses, 200, 200)
	})

	if err := o.ProcessPowerMessage(ctx, api.PowerState{Enabled: false}); err != nil {
		t.Fatalf("ProcessPowerMessage failed: %v", err)
	}
	waitFor(t, time.Second*5, "motor to stop", func() bool {
		return pwm.writeCount() >= 2
	})
	cancel()
	<-done

	writes := pwm.pwmWrites()
	last := writes[len(writes)-1]
	if last.OffValue != 0 || last.Enabled {
		t.Errorf("Expected motor to end stopped and disabled, got %+v", last)
	}
}

// A failed write does not advance the duty; the same step is retried.
func TestMotorWriteErrorRetries(t *testing.T) {
	pwm := newFakePWM(255)
	pwm.writeFunc = func(call int) error {
		if call == 0 {
			return errors.New("bus error")
		}
		return nil
	}
	statuses := &fakeStatuses{}
	o := newTestMotor(t, pwm, map[api.ConfigKey]string{
		api.ConfigKeyStep:      "10",
		api.ConfigKeyStepDelay: "1",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runMotor(t, ctx, o, statuses)

	if err := o.ProcessMessage(ctx, api.Motor{Address: o.address, Request: &api.MotorState{Duty: 10}}); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	waitFor(t, time.Second*5, "duty 10 to be reached", func() bool {
		return hasMotorActual(statuses, 10, 10)
	})
	cancel()
	<-done

	writes := pwm.pwmWrites()
	if len(writes) != 1 {
		t.Fatalf("Expected 1 recorded write, got %d", len(writes))
	}
	if writes[0].OffValue != 10 || !writes[0].Enabled {
		t.Errorf("Expected retried write of duty 10, got %+v", writes[0])
	}
}

// Configure stops the motor.
func TestMotorConfigure(t *testing.T) {
	pwm := newFakePWM(255)
	o := newTestMotor(t, pwm, nil)

	if err := o.Configure(context.Background()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	writes := pwm.pwmWrites()
	if len(writes) != 1 {
		t.Fatalf("Expected 1 write, got %d", len(writes))
	}
	if writes[0].OffValue != 0 || writes[0].Enabled {
		t.Errorf("Expected a disabled duty 0 write, got %+v", writes[0])
	}
}

func TestNewMotorErrors(t *testing.T) {
	gpio := newFakeGPIO(8)
	pwm := newFakePWM(255)
	devService := newFakeDeviceService().add("btn", gpio).add("mot", pwm)

	tests := []struct {
		name   string
		config api.Object
	}{
		{"wrong-type", api.Object{ID: "x", Type: api.ObjectTypeBinaryOutput, Connections: []api.Connection{
			{Name: api.ConnectionNameMotor, Pins: []api.DevicePin{{DeviceID: "mot", Index: 1}}},
		}}},
		{"missing-connection", api.Object{ID: "x", Type: api.ObjectTypeMotor}},
		{"not-a-pwm", api.Object{ID: "x", Type: api.ObjectTypeMotor, Connections: []api.Connection{
			{Name: api.ConnectionNameMotor, Pins: []api.DevicePin{{DeviceID: "btn", Index: 1}}},
		}}},
		{"unknown-device", api.Object{ID: "x", Type: api.ObjectTypeMotor, Connections: []api.Connection{
			{Name: api.ConnectionNameMotor, Pins: []api.DevicePin{{DeviceID: "nope", Index: 1}}},
		}}},
		{"pin-out-of-range", api.Object{ID: "x", Type: api.ObjectTypeMotor, Connections: []api.Connection{
			{Name: api.ConnectionNameMotor, Pins: []api.DevicePin{{DeviceID: "mot", Index: 17}}},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := newMotor("test", tc.config.ID, "mod1/x", tc.config, zerolog.Nop(), devService); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
