// Package notification delivers decision outcome notices to subjects.
package notification

import (
	"context"
	"fmt"
	"time"

	"cred/pkg/clock"
	"cred/pkg/logger"

	"github.com/google/uuid"
)

// ChannelType represents the delivery method.
type ChannelType string

const (
	ChannelEmail ChannelType = "EMAIL"
	ChannelSMS   ChannelType = "SMS"
)

// Priority represents the urgency of the notification.
type Priority int

const (
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
	PriorityUrgent Priority = 3
)

// Event types emitted by the decision workflow.
const (
	EventVerificationApproved = "VERIFICATION_APPROVED"
	EventVerificationRejected = "VERIFICATION_REJECTED"
	EventAccountSuspended     = "ACCOUNT_SUSPENDED"
	EventAccountReinstated    = "ACCOUNT_REINSTATED"
	EventAccountBlacklisted   = "ACCOUNT_BLACKLISTED"
	EventRiskRescored         = "RISK_RESCORED"
)

// Notification represents a message to be sent.
type Notification struct {
	ID        uuid.UUID
	SubjectID uuid.UUID
	Type      string
	Channel   ChannelType
	Priority  Priority
	Subject   string
	Body      string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Notifier is the surface the decision workflow depends on. Delivery
// failures never fail the decision itself; callers dispatch and log.
type Notifier interface {
	Notify(ctx context.Context, subjectID uuid.UUID, eventType string, data map[string]interface{}) error
}

// Service renders event templates and hands them to the delivery log.
// Real provider integration (email, SMS gateways) sits behind SendRaw.
type Service struct {
	logger logger.Logger
	clock  clock.Clock
}

func NewService(log logger.Logger, clk clock.Clock) *Service {
	return &Service{
		logger: log.Named("notification"),
		clock:  clk,
	}
}

// Notify constructs and sends a notification for a workflow event.
func (s *Service) Notify(ctx context.Context, subjectID uuid.UUID, eventType string, data map[string]interface{}) error {
	var subject, body string
	priority := PriorityNormal

	switch eventType {
	case EventVerificationApproved:
		subject = "Verification Approved"
		body = "Your identity verification has been approved. Transaction limits now apply to your account."
		priority = PriorityHigh

	case EventVerificationRejected:
		subject = "Verification Rejected"
		body = fmt.Sprintf("Your identity verification was rejected: %v. Contact support to appeal.", data["reason"])
		priority = PriorityHigh

	case EventAccountSuspended:
		subject = "Account Suspended"
		body = fmt.Sprintf("Your account has been suspended: %v.", data["reason"])
		priority = PriorityUrgent

	case EventAccountReinstated:
		subject = "Account Reinstated"
		body = "Your account suspension has been lifted. Your previous verification remains in effect."
		priority = PriorityHigh

	case EventAccountBlacklisted:
		subject = "Account Restricted"
		body = "Your account has been restricted. Contact support for details."
		priority = PriorityUrgent

	case EventRiskRescored:
		subject = "Account Limits Updated"
		body = "Your transaction limits were recalculated following a risk review."

	default:
		subject = "Notification"
		body = fmt.Sprintf("Event: %s", eventType)
	}

	n := &Notification{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Type:      eventType,
		Channel:   ChannelEmail,
		Priority:  priority,
		Subject:   subject,
		Body:      body,
		Metadata:  data,
		CreatedAt: s.clock.Now(),
	}

	return s.SendRaw(ctx, n)
}

// SendRaw handles the delivery. Urgent notices also go out over SMS.
func (s *Service) SendRaw(ctx context.Context, n *Notification) error {
	s.logger.Info("notification sent", map[string]interface{}{
		"notification_id": n.ID,
		"subject_id":      n.SubjectID,
		"channel":         n.Channel,
		"type":            n.Type,
		"subject":         n.Subject,
		"priority":        n.Priority,
	})

	if n.Priority == PriorityUrgent {
		s.logger.Info("sms sent", map[string]interface{}{
			"subject_id": n.SubjectID,
			"body":       n.Body,
		})
	}

	return nil
}
