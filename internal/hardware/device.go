// Package hardware is the boundary to the externally owned device
// layer. The gateway only ever looks devices up by their configured
// name and toggles them; drivers live elsewhere in the platform.
package hardware

import (
	"sync"

	"github.com/rs/zerolog"
)

// Device is anything with a binary on/off state: an LED, a buzzer, a
// relay behind a GPIO line.
type Device interface {
	Name() string
	TurnOn() error
	TurnOff() error
}

// Registry maps configured device names to devices.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Register adds or replaces a device under its name.
func (r *Registry) Register(dev Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[dev.Name()] = dev
}

// Lookup returns the device registered under name. A missing or empty
// name yields (nil, false); callers degrade to no-op feedback.
func (r *Registry) Lookup(name string) (Device, bool) {
	if name == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[name]
	return dev, ok
}

// LogDevice is a development stand-in that records state changes to
// the log instead of driving hardware.
type LogDevice struct {
	name string
	log  zerolog.Logger
}

// NewLogDevice returns a log-backed device with the given name.
func NewLogDevice(name string, log zerolog.Logger) *LogDevice {
	return &LogDevice{name: name, log: log}
}

func (d *LogDevice) Name() string { return d.name }

func (d *LogDevice) TurnOn() error {
	d.log.Debug().Str("device", d.name).Msg("device on")
	return nil
}

func (d *LogDevice) TurnOff() error {
	d.log.Debug().Str("device", d.name).Msg("device off")
	return nil
}
