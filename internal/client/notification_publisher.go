// Package client holds outbound collaborators of the negotiations service.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vitalle-health/be-negotiations/internal/platform/natsclient"
)

// Notice is one workflow notification.
type Notice struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	ActionLink string `json:"action_link,omitempty"`
	Priority   string `json:"priority,omitempty"` // info | warning | critical
}

// Dispatcher delivers workflow notices. Delivery is best-effort: failures
// are logged and never propagated, so a failed send can never roll back an
// already-committed state transition.
type Dispatcher interface {
	SendToUser(ctx context.Context, userID string, notice Notice)
	SendToRole(ctx context.Context, role string, notice Notice)
}

// NotificationPublisher publishes workflow notices to NATS for consumption
// by the notifications platform service.
//
// Subject convention: notifications.negotiations.<target_kind>
// Target kinds: user, role.
type NotificationPublisher struct {
	nats *natsclient.Client
	log  zerolog.Logger
}

// notificationEvent is the JSON schema published to NATS.
type notificationEvent struct {
	TargetKind string `json:"target_kind"` // user | role
	Target     string `json:"target"`
	Notice     Notice `json:"notice"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// client. A nil client disables delivery (sends become logged no-ops).
func NewNotificationPublisher(nats *natsclient.Client, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nats: nats, log: log}
}

// SendToUser publishes a notice addressed to a single user.
func (p *NotificationPublisher) SendToUser(ctx context.Context, userID string, notice Notice) {
	p.publish(ctx, "user", userID, notice)
}

// SendToRole publishes a notice addressed to everyone holding a role.
func (p *NotificationPublisher) SendToRole(ctx context.Context, role string, notice Notice) {
	p.publish(ctx, "role", role, notice)
}

func (p *NotificationPublisher) publish(ctx context.Context, kind, target string, notice Notice) {
	if p.nats == nil {
		p.log.Debug().Str("target", target).Str("title", notice.Title).
			Msg("notification: transport disabled, dropping notice")
		return
	}

	event := &notificationEvent{TargetKind: kind, Target: target, Notice: notice}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("target", target).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.negotiations.%s", kind)
	if err := p.nats.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("target", target).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("target", target).
		Msg("notification: event published")
}
