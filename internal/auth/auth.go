// Package auth is the entry point through which the platform reports
// scanned cards to the gateway. Every scan is pushed onto the badge
// queue for broadcast to connected terminals and optimistically
// authorized; the real access decision is enforced by the core, not
// here.
package auth

import (
	"fmt"

	"github.com/rs/zerolog"

	"openacs/gateway/internal/access"
	"openacs/gateway/internal/feedback"
)

// Reserved card values. Matching is exact: a scan is a sentinel only
// when every byte matches.
var (
	// DiagnosticCard triggers the feedback melody on the reader head.
	DiagnosticCard = access.CardID{0x40, 0x61, 0x81, 0x80}
	// ResetCard triggers an application reset in the owning core.
	ResetCard = access.CardID{0x56, 0xbb, 0x28, 0xc5}
)

// Reporter delivers the authorization verdict for a request back to
// the owning core.
type Reporter interface {
	Authorize(requestID string, granted bool) error
}

// Resetter is the externally owned application reset operation.
type Resetter interface {
	Reset()
}

// Service wires scans into the badge queue, the feedback controller
// and the core collaborators.
type Service struct {
	queue    *access.Queue
	feedback *feedback.Controller
	reporter Reporter
	resetter Resetter
	log      zerolog.Logger
}

// NewService builds the entry point. All collaborators are required.
func NewService(queue *access.Queue, fb *feedback.Controller, reporter Reporter, resetter Resetter, log zerolog.Logger) *Service {
	return &Service{
		queue:    queue,
		feedback: fb,
		reporter: reporter,
		resetter: resetter,
		log:      log,
	}
}

// Authenticate parses a colon-delimited hex card string, runs sentinel
// side effects, queues the card for broadcast and reports
// authorize=true for the request. Sentinel cards are queued like any
// other scan.
func (s *Service) Authenticate(rawCard, requestID string) error {
	cid, err := access.ParseCardID(rawCard)
	if err != nil {
		return fmt.Errorf("authenticate request %s: %w", requestID, err)
	}

	if cid.Equal(DiagnosticCard) {
		s.feedback.PlayTestMelody()
	}
	if cid.Equal(ResetCard) {
		s.log.Info().Str("card", cid.String()).Msg("reset card scanned")
		s.resetter.Reset()
	}

	s.queue.Push(cid)
	s.log.Debug().Str("card", cid.String()).Str("request", requestID).Msg("card queued for broadcast")

	if err := s.reporter.Authorize(requestID, true); err != nil {
		return fmt.Errorf("authenticate request %s: report authorize: %w", requestID, err)
	}
	return nil
}
