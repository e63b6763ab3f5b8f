// Package core bridges the gateway to the central access-control
// platform: authorization traffic and badge events travel over NATS,
// terminal session presence lives in Redis.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"openacs/gateway/internal/access"
)

// NATS subjects.
const (
	SubjectBadgeUplink  = "acs.uplink.badge"
	SubjectUplinkAll    = "acs.uplink.all"
	SubjectAuthRequest  = "acs.auth.request"
	SubjectAuthResponse = "acs.auth.response"
	SubjectCoreReset    = "acs.core.reset"
)

// SubjectDownlink returns this gateway's downlink command subject.
func SubjectDownlink(gatewayID string) string {
	return fmt.Sprintf("gateway.downlink.%s", gatewayID)
}

const (
	sessionTTL = 300 * time.Second
	shadowTTL  = 24 * time.Hour
	opTimeout  = 5 * time.Second
)

// Authenticator is the gateway-side scan entry point fed by auth
// requests arriving over NATS.
type Authenticator interface {
	Authenticate(rawCard, requestID string) error
}

// FeedbackPlayer triggers the physical diagnostic feedback sequence.
type FeedbackPlayer interface {
	PlayTestMelody()
}

type badgeEvent struct {
	GatewayID string `json:"gateway_id"`
	Card      string `json:"card"`
	Timestamp int64  `json:"timestamp"`
}

type authRequest struct {
	RequestID string `json:"request_id"`
	Card      string `json:"card"`
}

type authResponse struct {
	RequestID string `json:"request_id"`
	Granted   bool   `json:"granted"`
	GatewayID string `json:"gateway_id"`
	Timestamp int64  `json:"timestamp"`
}

type downlinkCommand struct {
	Type string `json:"type"` // "feedback_test" | "reset"
}

// Bridge is the NATS/Redis face of the owning core.
type Bridge struct {
	gatewayID string
	nats      *nats.Conn
	redis     *redis.Client
	log       zerolog.Logger
	subs      []*nats.Subscription
}

// NewBridge wires an established NATS connection and Redis client.
func NewBridge(gatewayID string, nc *nats.Conn, rc *redis.Client, log zerolog.Logger) *Bridge {
	return &Bridge{gatewayID: gatewayID, nats: nc, redis: rc, log: log}
}

// Authorize reports the verdict for an authentication request to the
// core. It implements auth.Reporter.
func (b *Bridge) Authorize(requestID string, granted bool) error {
	payload, err := json.Marshal(authResponse{
		RequestID: requestID,
		Granted:   granted,
		GatewayID: b.gatewayID,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("authorize %s: %w", requestID, err)
	}
	if err := b.nats.Publish(SubjectAuthResponse, payload); err != nil {
		return fmt.Errorf("authorize %s: publish: %w", requestID, err)
	}
	return nil
}

// Reset announces an application reset to the platform. The process
// owner decides what follows; the gateway only reports. It implements
// auth.Resetter.
func (b *Bridge) Reset() {
	b.log.Warn().Msg("application reset requested")
	payload, _ := json.Marshal(map[string]any{
		"gateway_id": b.gatewayID,
		"timestamp":  time.Now().Unix(),
	})
	if err := b.nats.Publish(SubjectCoreReset, payload); err != nil {
		b.log.Error().Err(err).Msg("publish reset event")
	}
}

// TerminalConnected registers a terminal session with a TTL.
func (b *Bridge) TerminalConnected(addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := b.redis.Set(ctx, sessionKey(addr), b.gatewayID, sessionTTL).Err(); err != nil {
		b.log.Warn().Err(err).Str("terminal", addr).Msg("register terminal session")
	}
}

// TerminalDisconnected removes the terminal's session key.
func (b *Bridge) TerminalDisconnected(addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := b.redis.Del(ctx, sessionKey(addr)).Err(); err != nil {
		b.log.Warn().Err(err).Str("terminal", addr).Msg("drop terminal session")
	}
}

// CardBroadcast publishes the badge event uplink and refreshes the
// gateway shadow with the last scan.
func (b *Bridge) CardBroadcast(cid access.CardID) {
	payload, err := json.Marshal(badgeEvent{
		GatewayID: b.gatewayID,
		Card:      cid.String(),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		b.log.Error().Err(err).Msg("encode badge event")
		return
	}
	if err := b.nats.Publish(SubjectBadgeUplink, payload); err != nil {
		b.log.Warn().Err(err).Msg("publish badge uplink")
	}
	if err := b.nats.Publish(SubjectUplinkAll, payload); err != nil {
		b.log.Warn().Err(err).Msg("publish badge uplink (all)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	shadow := shadowKey(b.gatewayID)
	if err := b.redis.HSet(ctx, shadow, "last_card", cid.String(), "ts", time.Now().Unix()).Err(); err != nil {
		b.log.Warn().Err(err).Msg("update gateway shadow")
		return
	}
	b.redis.Expire(ctx, shadow, shadowTTL)
}

// SubscribeAuthRequests feeds incoming scan requests from the core
// into the authentication entry point.
func (b *Bridge) SubscribeAuthRequests(a Authenticator) error {
	sub, err := b.nats.Subscribe(SubjectAuthRequest, func(msg *nats.Msg) {
		var req authRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			b.log.Warn().Err(err).Msg("malformed auth request")
			return
		}
		if err := a.Authenticate(req.Card, req.RequestID); err != nil {
			b.log.Warn().Err(err).Str("request", req.RequestID).Msg("authenticate failed")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectAuthRequest, err)
	}
	b.subs = append(b.subs, sub)
	return nil
}

// SubscribeDownlink handles remote commands addressed to this gateway:
// a feedback test and a reset.
func (b *Bridge) SubscribeDownlink(fb FeedbackPlayer) error {
	subject := SubjectDownlink(b.gatewayID)
	sub, err := b.nats.Subscribe(subject, func(msg *nats.Msg) {
		var cmd downlinkCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			b.log.Warn().Err(err).Msg("malformed downlink command")
			return
		}
		switch cmd.Type {
		case "feedback_test":
			fb.PlayTestMelody()
		case "reset":
			b.Reset()
		default:
			b.log.Warn().Str("type", cmd.Type).Msg("unknown downlink command")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	b.subs = append(b.subs, sub)
	return nil
}

// Close drops all subscriptions. The NATS and Redis connections are
// owned by the caller.
func (b *Bridge) Close() {
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			b.log.Warn().Err(err).Msg("unsubscribe")
		}
	}
	b.subs = nil
}

func sessionKey(addr string) string {
	return fmt.Sprintf("acs:term:%s", addr)
}

func shadowKey(gatewayID string) string {
	return fmt.Sprintf("acs:shadow:%s", gatewayID)
}
