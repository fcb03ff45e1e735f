package service

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
)

// capturingPublisher records every actual handed to it.
// When failing is set, every publish returns an error instead.
type capturingPublisher struct {
	mutex   sync.Mutex
	failing bool
	sensors []api.Sensor
	outputs []api.Output
	motors  []api.Motor
}

var _ intf.Publisher = (*capturingPublisher)(nil)

func (p *capturingPublisher) PublishSensorActual(ctx context.Context, msg api.Sensor) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.failing {
		return errors.New("publish failed")
	}
	p.sensors = append(p.sensors, msg)
	return nil
}

func (p *capturingPublisher) PublishOutputActual(ctx context.Context, msg api.Output) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.failing {
		return errors.New("publish failed")
	}
	p.outputs = append(p.outputs, msg)
	return nil
}

func (p *capturingPublisher) PublishMotorActual(ctx context.Context, msg api.Motor) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.failing {
		return errors.New("publish failed")
	}
	p.motors = append(p.motors, msg)
	return nil
}

func TestMultiPublisherFanOut(t *testing.T) {
	ctx := context.Background()
	first := &capturingPublisher{}
	second := &capturingPublisher{}
	p := newMultiPublisher(first, second)

	if err := p.PublishSensorActual(ctx, api.Sensor{Address: "mod/a", Actual: &api.SensorState{Value: 1}}); err != nil {
		t.Fatalf("PublishSensorActual failed: %v", err)
	}
	if err := p.PublishOutputActual(ctx, api.Output{Address: "mod/led", Actual: &api.OutputState{Value: 1}}); err != nil {
		t.Fatalf("PublishOutputActual failed: %v", err)
	}
	if err := p.PublishMotorActual(ctx, api.Motor{Address: "mod/fan", Actual: &api.MotorState{Duty: 50}}); err != nil {
		t.Fatalf("PublishMotorActual failed: %v", err)
	}

	for i, pub := range []*capturingPublisher{first, second} {
		if len(pub.sensors) != 1 || len(pub.outputs) != 1 || len(pub.motors) != 1 {
			t.Errorf("Publisher %d received %d/%d/%d messages, expected 1/1/1",
				i, len(pub.sensors), len(pub.outputs), len(pub.motors))
		}
	}
}

func TestMultiPublisherContinuesOnError(t *testing.T) {
	ctx := context.Background()
	failing := &capturingPublisher{failing: true}
	working := &capturingPublisher{}
	p := newMultiPublisher(failing, working)

	err := p.PublishSensorActual(ctx, api.Sensor{Address: "mod/a", Actual: &api.SensorState{Value: 1}})
	if err == nil {
		t.Errorf("Expected an error from the failing publisher")
	}
	if len(working.sensors) != 1 {
		t.Errorf("Expected the working publisher to still receive the message")
	}
}
