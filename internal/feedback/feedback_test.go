package feedback

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeDevice counts on/off transitions.
type fakeDevice struct {
	mu   sync.Mutex
	name string
	ons  int
	offs int
}

func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) TurnOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ons++
	return nil
}

func (d *fakeDevice) TurnOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offs++
	return nil
}

func (d *fakeDevice) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ons, d.offs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

func TestPlayTestMelodyPulsesBothDevices(t *testing.T) {
	led := &fakeDevice{name: "led"}
	buzzer := &fakeDevice{name: "buzzer"}
	c := NewController(led, buzzer, zerolog.Nop())
	c.SetPulseInterval(time.Millisecond)

	c.PlayTestMelody()

	waitFor(t, func() bool {
		ons, offs := led.counts()
		return ons == melodyPulses && offs == melodyPulses
	})
	ons, offs := buzzer.counts()
	if ons != melodyPulses || offs != melodyPulses {
		t.Fatalf("buzzer pulses: on=%d off=%d want %d/%d", ons, offs, melodyPulses, melodyPulses)
	}
}

func TestPlayTestMelodySingleSlot(t *testing.T) {
	led := &fakeDevice{name: "led"}
	c := NewController(led, nil, zerolog.Nop())
	c.SetPulseInterval(5 * time.Millisecond)

	c.PlayTestMelody()
	c.PlayTestMelody() // dropped: one melody already in flight
	c.PlayTestMelody()

	waitFor(t, func() bool {
		ons, offs := led.counts()
		return ons == melodyPulses && offs == melodyPulses
	})
	// No further pulses may arrive from the dropped triggers.
	time.Sleep(30 * time.Millisecond)
	if ons, _ := led.counts(); ons != melodyPulses {
		t.Fatalf("overlapping trigger pulsed the device: on=%d want %d", ons, melodyPulses)
	}
}

func TestControllerWithoutDevicesIsNoop(t *testing.T) {
	c := NewController(nil, nil, zerolog.Nop())
	c.SetPulseInterval(time.Millisecond)
	// Must not panic and must return promptly.
	c.PlayTestMelody()
	c.Beep(true)
	c.Beep(false)
	c.Led(true)
}

func TestBeepDrivesBuzzerOnly(t *testing.T) {
	led := &fakeDevice{name: "led"}
	buzzer := &fakeDevice{name: "buzzer"}
	c := NewController(led, buzzer, zerolog.Nop())

	c.Beep(true)
	c.Beep(false)

	if ons, offs := buzzer.counts(); ons != 1 || offs != 1 {
		t.Fatalf("buzzer: on=%d off=%d want 1/1", ons, offs)
	}
	if ons, offs := led.counts(); ons != 0 || offs != 0 {
		t.Fatalf("led toggled by beep: on=%d off=%d", ons, offs)
	}
}
