package devices

import (
	"context"
	"testing"

	"github.com/motorbench/BenchWorker/pkg/api"
)

func newTestMcp23017(t *testing.T, bus *fakeI2CBus) GPIO {
	t.Helper()
	dev, err := newMcp23017(api.Device{
		ID:      "exp",
		Type:    api.DeviceTypeMCP23017,
		Address: "0x20",
	}, bus, func() {})
	if err != nil {
		t.Fatalf("newMcp23017 failed: %v", err)
	}
	return dev
}

func TestMcp23017Configure(t *testing.T) {
	ctx := context.Background()
	bus := newFakeI2CBus()
	dev := newTestMcp23017(t, bus)

	if err := dev.Configure(ctx); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	regs := bus.device(0x20).regs
	if regs[mcp23017RegIOCON] != 0x20 {
		t.Errorf("Expected IOCON 0x20, got 0x%0x", regs[mcp23017RegIOCON])
	}
	if regs[mcp23017RegIODIRA] != 0xff || regs[mcp23017RegIODIRB] != 0xff {
		t.Errorf("Expected all pins input, got 0x%0x/0x%0x", regs[mcp23017RegIODIRA], regs[mcp23017RegIODIRB])
	}
}

func TestMcp23017SetBankA(t *testing.T) {
	ctx := context.Background()
	bus := newFakeI2CBus()
	dev := newTestMcp23017(t, bus)
	if err := dev.Configure(ctx); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if err := dev.SetDirection(ctx, 3, PinDirectionOutput); err != nil {
		t.Fatalf("SetDirection failed: %v", err)
	}
	regs := bus.device(0x20).regs
	if regs[mcp23017RegIODIRA] != 0xfb {
		t.Errorf("Expected IODIRA 0xfb, got 0x%0x", regs[mcp23017RegIODIRA])
	}

	if err := dev.Set(ctx, 3, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if regs[mcp23017RegGPIOA] != 0xfb {
		t.Errorf("Expected GPIOA 0xfb, got 0x%0x", regs[mcp23017RegGPIOA])
	}
}

func TestMcp23017SetBankB(t *testing.T) {
	ctx := context.Background()
	bus := newFakeI2CBus()
	dev := newTestMcp23017(t, bus)
	if err := dev.Configure(ctx); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	// Pin 11 is the third pin of bank B
	if err := dev.SetDirection(ctx, 11, PinDirectionOutput); err != nil {
		t.Fatalf("SetDirection failed: %v", err)
	}
	regs := bus.device(0x20).regs
	if regs[mcp23017RegIODIRB] != 0xfb {
		t.Errorf("Expected IODIRB 0xfb, got 0x%0x", regs[mcp23017RegIODIRB])
	}
	if regs[mcp23017RegIODIRA] != 0xff {
		t.Errorf("Expected IODIRA untouched, got 0x%0x", regs[mcp23017RegIODIRA])
	}

	if err := dev.Set(ctx, 11, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if regs[mcp23017RegGPIOB] != 0xfb {
		t.Errorf("Expected GPIOB 0xfb, got 0x%0x", regs[mcp23017RegGPIOB])
	}

	value, err := dev.Get(ctx, 11)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value {
		t.Error("Expected pin 11 to read false")
	}
}

func TestMcp23017SetOnInputPin(t *testing.T) {
	ctx := context.Background()
	bus := newFakeI2CBus()
	dev := newTestMcp23017(t, bus)
	if err := dev.Configure(ctx); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if err := dev.Set(ctx, 5, true); !IsInvalidDirection(err) {
		t.Errorf("Expected invalid direction error, got %v", err)
	}
}

func TestMcp23017InvalidPin(t *testing.T) {
	ctx := context.Background()
	bus := newFakeI2CBus()
	dev := newTestMcp23017(t, bus)

	if err := dev.SetDirection(ctx, 0, PinDirectionOutput); !IsInvalidPin(err) {
		t.Errorf("Expected invalid pin error, got %v", err)
	}
	if err := dev.SetDirection(ctx, 17, PinDirectionOutput); !IsInvalidPin(err) {
		t.Errorf("Expected invalid pin error, got %v", err)
	}
}
