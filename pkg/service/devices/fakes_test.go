package devices

import (
	"context"

	"github.com/motorbench/BenchWorker/pkg/service/bridge"
)

// fakeI2CDevice records register writes and serves reads from the same
// register map.
type fakeI2CDevice struct {
	regs   map[uint8]uint8
	bytes  []uint8
	writes []regWrite
}

type regWrite struct {
	Reg   uint8
	Value uint8
}

func newFakeI2CDevice() *fakeI2CDevice {
	return &fakeI2CDevice{
		regs: make(map[uint8]uint8),
	}
}

func (d *fakeI2CDevice) ReadByteReg(reg uint8) (uint8, error) {
	return d.regs[reg], nil
}

func (d *fakeI2CDevice) WriteByteReg(reg uint8, val uint8) error {
	d.regs[reg] = val
	d.writes = append(d.writes, regWrite{Reg: reg, Value: val})
	return nil
}

func (d *fakeI2CDevice) ReadByte() (byte, error) {
	if len(d.bytes) == 0 {
		return 0, nil
	}
	return d.bytes[len(d.bytes)-1], nil
}

func (d *fakeI2CDevice) WriteByte(val byte) error {
	d.bytes = append(d.bytes, val)
	return nil
}

func (d *fakeI2CDevice) ReadDevice(data []byte) error {
	return nil
}

func (d *fakeI2CDevice) WriteDevice(data []byte) error {
	return nil
}

// fakeI2CBus serves a fake device per address.
type fakeI2CBus struct {
	devices map[uint8]*fakeI2CDevice
}

func newFakeI2CBus() *fakeI2CBus {
	return &fakeI2CBus{
		devices: make(map[uint8]*fakeI2CDevice),
	}
}

func (b *fakeI2CBus) device(address uint8) *fakeI2CDevice {
	dev, found := b.devices[address]
	if !found {
		dev = newFakeI2CDevice()
		b.devices[address] = dev
	}
	return dev
}

func (b *fakeI2CBus) Execute(ctx context.Context, address uint8, op func(ctx context.Context, dev bridge.I2CDevice) error) error {
	return op(ctx, b.device(address))
}

func (b *fakeI2CBus) DetectSlaveAddresses() []byte {
	var result []byte
	for addr := range b.devices {
		result = append(result, addr)
	}
	return result
}

func (b *fakeI2CBus) Close() error {
	return nil
}
