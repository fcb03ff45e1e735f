package devices

import (
	"testing"

	"github.com/motorbench/BenchWorker/pkg/api"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		Input    string
		Expected int
		IsValid  bool
	}{
		{"0x20", 0x20, true},
		{"0X1a", 0x1a, true},
		{"64", 64, true},
		{"0", 0, true},
		{"", 0, false},
		{"zz", 0, false},
		{"-5", 0, false},
	}
	for _, test := range tests {
		result, err := parseAddress(test.Input)
		if test.IsValid {
			if err != nil {
				t.Errorf("Expected '%s' to parse, got error %v", test.Input, err)
			} else if result != test.Expected {
				t.Errorf("Expected '%s' to parse to %d, got %d", test.Input, test.Expected, result)
			}
		} else if err == nil {
			t.Errorf("Expected '%s' to fail, got %d", test.Input, result)
		}
	}
}

func TestMQTTTopicPrefix(t *testing.T) {
	topicDevice := &api.Device{ID: "motor", Type: api.DeviceTypeMQTTPWM, Address: "/garage/motor"}
	if prefix := mqttTopicPrefix("bench1", topicDevice); prefix != "/garage/motor/" {
		t.Errorf("Expected topic address to win, got '%s'", prefix)
	}
	defaultDevice := &api.Device{ID: "drv", Type: api.DeviceTypePCA9685, Address: "0x40"}
	if prefix := mqttTopicPrefix("Bench1", defaultDevice); prefix != "/bench/bench1/drv/" {
		t.Errorf("Expected default prefix, got '%s'", prefix)
	}
}
