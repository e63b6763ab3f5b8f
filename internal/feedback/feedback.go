// Package feedback drives the reader's LED and buzzer for physical
// acknowledgement without ever blocking the protocol loop.
package feedback

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"openacs/gateway/internal/hardware"
)

// DefaultPulseInterval matches the reader firmware's expected cadence:
// 100ms on, 100ms off.
const DefaultPulseInterval = 100 * time.Millisecond

const melodyPulses = 5

// Controller pulses an optional LED and buzzer. Either device may be
// absent; the controller silently skips whatever was never configured.
type Controller struct {
	led      hardware.Device
	buzzer   hardware.Device
	interval time.Duration
	log      zerolog.Logger

	// Single-slot guard: a melody trigger while one is playing is
	// dropped rather than overlapped, so concurrent sequences cannot
	// interleave device state.
	playing atomic.Bool
}

// NewController builds a controller over the given devices, either of
// which may be nil.
func NewController(led, buzzer hardware.Device, log zerolog.Logger) *Controller {
	return &Controller{
		led:      led,
		buzzer:   buzzer,
		interval: DefaultPulseInterval,
		log:      log,
	}
}

// SetPulseInterval overrides the pulse cadence. Intended for tests.
func (c *Controller) SetPulseInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// PlayTestMelody runs five on/off pulses on both devices from a
// separate goroutine and returns immediately. A trigger while a melody
// is already playing is ignored.
func (c *Controller) PlayTestMelody() {
	if !c.playing.CompareAndSwap(false, true) {
		c.log.Debug().Msg("feedback melody already playing, trigger dropped")
		return
	}
	c.log.Info().Msg("test card found, playing feedback melody")
	go func() {
		defer c.playing.Store(false)
		for i := 0; i < melodyPulses; i++ {
			time.Sleep(c.interval)
			c.set(true)
			time.Sleep(c.interval)
			c.set(false)
		}
	}()
}

// Beep switches the buzzer on or off. Used for the terminal-originated
// beep command; does nothing when no buzzer is configured.
func (c *Controller) Beep(on bool) {
	c.drive(c.buzzer, on)
}

// Led switches the LED on or off.
func (c *Controller) Led(on bool) {
	c.drive(c.led, on)
}

func (c *Controller) set(on bool) {
	c.drive(c.led, on)
	c.drive(c.buzzer, on)
}

func (c *Controller) drive(dev hardware.Device, on bool) {
	if dev == nil {
		return
	}
	var err error
	if on {
		err = dev.TurnOn()
	} else {
		err = dev.TurnOff()
	}
	if err != nil {
		c.log.Warn().Err(err).Str("device", dev.Name()).Msg("device toggle failed")
	}
}
