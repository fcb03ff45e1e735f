package objects

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service/devices"
	"github.com/motorbench/BenchWorker/pkg/service/intf"
)

// fakeGPIO is an in-memory GPIO device.
// Reads are counted per pin and can be scripted through readFunc,
// which is called with the number of earlier reads of that pin.
type fakeGPIO struct {
	mutex      sync.Mutex
	pinCount   uint
	directions map[api.DeviceIndex]devices.PinDirection
	values     map[api.DeviceIndex]bool
	reads      map[api.DeviceIndex]int
	readFunc   func(pin api.DeviceIndex, reads int) (bool, error)
	writes     []gpioWrite
}

type gpioWrite struct {
	Pin   api.DeviceIndex
	Value bool
}

var _ devices.GPIO = (*fakeGPIO)(nil)

func newFakeGPIO(pinCount uint) *fakeGPIO {
	return &fakeGPIO{
		pinCount:   pinCount,
		directions: make(map[api.DeviceIndex]devices.PinDirection),
		values:     make(map[api.DeviceIndex]bool),
		reads:      make(map[api.DeviceIndex]int),
	}
}

func (d *fakeGPIO) Configure(ctx context.Context) error { return nil }
func (d *fakeGPIO) Close(ctx context.Context) error     { return nil }
func (d *fakeGPIO) PinCount() uint                      { return d.pinCount }

func (d *fakeGPIO) SetDirection(ctx context.Context, pin api.DeviceIndex, direction devices.PinDirection) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.directions[pin] = direction
	return nil
}

func (d *fakeGPIO) GetDirection(ctx context.Context, pin api.DeviceIndex) (devices.PinDirection, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.directions[pin], nil
}

func (d *fakeGPIO) Set(ctx context.Context, pin api.DeviceIndex, value bool) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.values[pin] = value
	d.writes = append(d.writes, gpioWrite{Pin: pin, Value: value})
	return nil
}

func (d *fakeGPIO) Get(ctx context.Context, pin api.DeviceIndex) (bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	reads := d.reads[pin]
	d.reads[pin] = reads + 1
	if d.readFunc != nil {
		return d.readFunc(pin, reads)
	}
	return d.values[pin], nil
}

// setValue changes the value returned by Get.
func (d *fakeGPIO) setValue(pin api.DeviceIndex, value bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.values[pin] = value
}

func (d *fakeGPIO) readCount(pin api.DeviceIndex) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.reads[pin]
}

func (d *fakeGPIO) direction(pin api.DeviceIndex) devices.PinDirection {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.directions[pin]
}

func (d *fakeGPIO) gpioWrites() []gpioWrite {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]gpioWrite(nil), d.writes...)
}

// fakePWM is an in-memory PWM device that records every successful write.
// writeFunc, when set, is called with the running attempt count and can
// fail an attempt before it is recorded.
type fakePWM struct {
	mutex       sync.Mutex
	maxPWMValue uint32
	calls       int
	writeFunc   func(call int) error
	writes      []pwmWrite
}

type pwmWrite struct {
	Index    api.DeviceIndex
	OffValue uint32
	Enabled  bool
}

var _ devices.PWM = (*fakePWM)(nil)

func newFakePWM(maxPWMValue uint32) *fakePWM {
	return &fakePWM{maxPWMValue: maxPWMValue}
}

func (d *fakePWM) Configure(ctx context.Context) error { return nil }
func (d *fakePWM) Close(ctx context.Context) error     { return nil }
func (d *fakePWM) PWMPinCount() int                    { return 16 }
func (d *fakePWM) MaxPWMValue() uint32                 { return d.maxPWMValue }

func (d *fakePWM) SetPWM(ctx context.Context, output api.DeviceIndex, onValue, offValue uint32, enabled bool) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	call := d.calls
	d.calls++
	if d.writeFunc != nil {
		if err := d.writeFunc(call); err != nil {
			return err
		}
	}
	d.writes = append(d.writes, pwmWrite{Index: output, OffValue: offValue, Enabled: enabled})
	return nil
}

func (d *fakePWM) GetPWM(ctx context.Context, output api.DeviceIndex) (uint32, uint32, bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for i := len(d.writes) - 1; i >= 0; i-- {
		if d.writes[i].Index == output {
			return 0, d.writes[i].OffValue, d.writes[i].Enabled, nil
		}
	}
	return 0, 0, false, nil
}

func (d *fakePWM) writeCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.writes)
}

func (d *fakePWM) pwmWrites() []pwmWrite {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]pwmWrite(nil), d.writes...)
}

// fakeStatuses records every actual handed to it.
type fakeStatuses struct {
	mutex   sync.Mutex
	sensors []api.Sensor
	outputs []api.Output
	motors  []api.Motor
}

var _ StatusService = (*fakeStatuses)(nil)

func (s *fakeStatuses) PublishOutputActual(msg api.Output) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.outputs = append(s.outputs, msg)
	return true
}

func (s *fakeStatuses) PublishSensorActual(msg api.Sensor) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sensors = append(s.sensors, msg)
	return true
}

func (s *fakeStatuses) PublishMotorActual(msg api.Motor) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.motors = append(s.motors, msg)
	return true
}

func (s *fakeStatuses) sensorActuals() []api.Sensor {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]api.Sensor(nil), s.sensors...)
}

func (s *fakeStatuses) outputActuals() []api.Output {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]api.Output(nil), s.outputs...)
}

func (s *fakeStatuses) motorActuals() []api.Motor {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]api.Motor(nil), s.motors...)
}

// fakePublisher records actuals handed to the outside world.
type fakePublisher struct {
	mutex   sync.Mutex
	sensors []api.Sensor
	outputs []api.Output
	motors  []api.Motor
}

var _ intf.Publisher = (*fakePublisher)(nil)

func (p *fakePublisher) PublishSensorActual(ctx context.Context, msg api.Sensor) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.sensors = append(p.sensors, msg)
	return nil
}

func (p *fakePublisher) PublishOutputActual(ctx context.Context, msg api.Output) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.outputs = append(p.outputs, msg)
	return nil
}

func (p *fakePublisher) PublishMotorActual(ctx context.Context, msg api.Motor) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.motors = append(p.motors, msg)
	return nil
}

func (p *fakePublisher) publishedSensors() []api.Sensor {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]api.Sensor(nil), p.sensors...)
}

func (p *fakePublisher) publishedOutputs() []api.Output {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]api.Output(nil), p.outputs...)
}

func (p *fakePublisher) publishedMotors() []api.Motor {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]api.Motor(nil), p.motors...)
}

// fakeDeviceService resolves devices from a fixed map.
type fakeDeviceService struct {
	devs map[api.DeviceID]devices.Device
}

var _ devices.Service = (*fakeDeviceService)(nil)

func newFakeDeviceService() *fakeDeviceService {
	return &fakeDeviceService{devs: make(map[api.DeviceID]devices.Device)}
}

func (s *fakeDeviceService) add(id api.DeviceID, dev devices.Device) *fakeDeviceService {
	s.devs[id] = dev
	return s
}

func (s *fakeDeviceService) DeviceByID(id api.DeviceID) (devices.Device, bool) {
	dev, found := s.devs[id]
	return dev, found
}

func (s *fakeDeviceService) Configure(ctx context.Context) error { return nil }

func (s *fakeDeviceService) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *fakeDeviceService) Close(ctx context.Context) error { return nil }

func (s *fakeDeviceService) GetConfiguredDeviceIDs() []string {
	result := make([]string, 0, len(s.devs))
	for id := range s.devs {
		result = append(result, string(id))
	}
	sort.Strings(result)
	return result
}

func (s *fakeDeviceService) GetUnconfiguredDeviceIDs() []string { return nil }

func (s *fakeDeviceService) DiscoverHardware(ctx context.Context) []string { return nil }

// waitFor polls the given condition until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
