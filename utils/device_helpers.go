package utils

import (
	"fmt"
	"strings"

	"github.com/notargets/gocca"
	log "github.com/sirupsen/logrus"
)

// deviceProps are the OCCA properties tried for each mode, in order of
// preference when no mode is given
var deviceProps = []struct{ mode, props string }{
	{"OpenMP", `{"mode": "OpenMP"}`},
	{"CUDA", `{"mode": "CUDA", "device_id": 0}`},
	{"Serial", `{"mode": "Serial"}`},
}

// NewDevice opens a device of the named mode. An empty mode or "auto" tries
// OpenMP, then CUDA, then Serial.
func NewDevice(mode string) (*gocca.OCCADevice, error) {
	auto := mode == "" || strings.EqualFold(mode, "auto")
	var lastErr error
	for _, d := range deviceProps {
		if !auto && !strings.EqualFold(d.mode, mode) {
			continue
		}
		device, err := gocca.NewDevice(d.props)
		if err == nil {
			log.WithField("mode", device.Mode()).Debug("created device")
			return device, nil
		}
		lastErr = err
		if !auto {
			break
		}
	}
	if lastErr == nil {
		return nil, fmt.Errorf("unknown device mode %q", mode)
	}
	return nil, fmt.Errorf("no device for mode %q: %w", mode, lastErr)
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	device, err := NewDevice("")
	if err != nil {
		panic(err)
	}
	return device
}
