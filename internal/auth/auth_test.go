package auth

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"openacs/gateway/internal/access"
	"openacs/gateway/internal/feedback"
)

type recordingReporter struct {
	requests []string
	verdicts []bool
}

func (r *recordingReporter) Authorize(requestID string, granted bool) error {
	r.requests = append(r.requests, requestID)
	r.verdicts = append(r.verdicts, granted)
	return nil
}

type recordingResetter struct {
	resets int
}

func (r *recordingResetter) Reset() { r.resets++ }

type countingDevice struct {
	name string
	ons  chan struct{}
}

func (d *countingDevice) Name() string { return d.name }

func (d *countingDevice) TurnOn() error {
	select {
	case d.ons <- struct{}{}:
	default:
	}
	return nil
}

func (d *countingDevice) TurnOff() error { return nil }

func newService(t *testing.T) (*Service, *access.Queue, *recordingReporter, *recordingResetter, *countingDevice) {
	t.Helper()
	led := &countingDevice{name: "led", ons: make(chan struct{}, 16)}
	fb := feedback.NewController(led, nil, zerolog.Nop())
	fb.SetPulseInterval(time.Millisecond)
	queue := access.NewQueue()
	reporter := &recordingReporter{}
	resetter := &recordingResetter{}
	svc := NewService(queue, fb, reporter, resetter, zerolog.Nop())
	return svc, queue, reporter, resetter, led
}

func TestAuthenticateQueuesAndAuthorizes(t *testing.T) {
	svc, queue, reporter, resetter, _ := newService(t)

	if err := svc.Authenticate("12:34:56:78", "req-1"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	cid, ok := queue.Pop()
	if !ok || !cid.Equal(access.CardID{0x12, 0x34, 0x56, 0x78}) {
		t.Fatalf("queued card: got=%v ok=%v", cid, ok)
	}
	if len(reporter.requests) != 1 || reporter.requests[0] != "req-1" || !reporter.verdicts[0] {
		t.Fatalf("authorize report: %+v %+v", reporter.requests, reporter.verdicts)
	}
	if resetter.resets != 0 {
		t.Fatalf("unexpected reset")
	}
}

func TestAuthenticateDiagnosticCardPlaysMelody(t *testing.T) {
	svc, queue, reporter, resetter, led := newService(t)

	if err := svc.Authenticate("40:61:81:80", "req-2"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	select {
	case <-led.ons:
	case <-time.After(2 * time.Second):
		t.Fatalf("diagnostic card did not pulse the led")
	}
	if cid, ok := queue.Pop(); !ok || !cid.Equal(DiagnosticCard) {
		t.Fatalf("diagnostic card not queued: got=%v ok=%v", cid, ok)
	}
	if len(reporter.verdicts) != 1 || !reporter.verdicts[0] {
		t.Fatalf("diagnostic card must still authorize: %+v", reporter.verdicts)
	}
	if resetter.resets != 0 {
		t.Fatalf("diagnostic card must not reset")
	}
}

func TestAuthenticateResetCardInvokesReset(t *testing.T) {
	svc, queue, _, resetter, led := newService(t)

	if err := svc.Authenticate("56:bb:28:c5", "req-3"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if resetter.resets != 1 {
		t.Fatalf("resets=%d want 1", resetter.resets)
	}
	if cid, ok := queue.Pop(); !ok || !cid.Equal(ResetCard) {
		t.Fatalf("reset card not queued: got=%v ok=%v", cid, ok)
	}
	select {
	case <-led.ons:
		t.Fatalf("reset card must not play the melody")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAuthenticateSentinelMatchIsExact(t *testing.T) {
	svc, _, _, resetter, led := newService(t)

	// Prefix of the diagnostic card: an ordinary scan.
	if err := svc.Authenticate("40:61:81", "req-4"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	select {
	case <-led.ons:
		t.Fatalf("prefix of diagnostic card triggered the melody")
	case <-time.After(50 * time.Millisecond):
	}
	if resetter.resets != 0 {
		t.Fatalf("unexpected reset")
	}
}

func TestAuthenticateRejectsMalformedCard(t *testing.T) {
	svc, queue, reporter, _, _ := newService(t)

	if err := svc.Authenticate("not-hex", "req-5"); err == nil {
		t.Fatalf("expected parse error")
	}
	if queue.Len() != 0 {
		t.Fatalf("malformed card was queued")
	}
	if len(reporter.requests) != 0 {
		t.Fatalf("malformed card was authorized")
	}
}
