package email

import (
	"context"
	"fmt"
	"time"

	"nimbus/internal/constants"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
	"nimbus/pkg/logging"
	"nimbus/pkg/models"
)

const auditWriteTimeout = 5 * time.Second

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// HandleUserCreated is the event handler bound to user_created deliveries.
// Returning an error requeues the delivery, so payload problems are reported
// as fatal to keep a malformed event from looping forever.
func (s *Service) HandleUserCreated(ctx context.Context, event models.EventEnvelope) error {
	to := event.StringField("email")
	name := event.StringField("name")
	userID := event.StringField("userId")

	if to == "" {
		return pkgerrors.ErrValidation.AsFatal().
			WithDetail("message", "user_created event is missing the email field").
			WithDetail("event_id", event.ID)
	}

	message := fmt.Sprintf("Hello %s, welcome aboard!", name)
	s.deliver(ctx, to, constants.WelcomeEmailSubject, message)

	log := &EmailLog{
		Recipient:   to,
		Subject:     constants.WelcomeEmailSubject,
		Message:     message,
		Status:      constants.EmailStatusSent,
		UserID:      userID,
		RequestedBy: constants.ServiceNameEmail,
	}
	if err := s.repo.CreateLog(ctx, log); err != nil {
		// The welcome email already went out; requeueing here would re-send
		// it on every redelivery until the database recovers.
		s.logger.ErrorwCtx(ctx, "Failed to record welcome email",
			"event_id", event.ID,
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	s.logger.InfowCtx(ctx, "Welcome email sent",
		"user_id", userID,
		"to", to,
	)
	return nil
}

// SendEmail delivers on behalf of another service. The audit write happens in
// the background: the caller already got its delivery, a slow or failing
// database must not turn that into an error response.
func (s *Service) SendEmail(ctx context.Context, req SendEmailRequest, requestedBy string) error {
	if req.To == "" || req.Subject == "" || req.Message == "" {
		return pkgerrors.ErrValidation.WithDetail("message", "to, subject and message are required")
	}

	s.deliver(ctx, req.To, req.Subject, req.Message)

	log := &EmailLog{
		Recipient:   req.To,
		Subject:     req.Subject,
		Message:     req.Message,
		Status:      constants.EmailStatusSent,
		RequestedBy: requestedBy,
	}
	go s.writeAudit(logging.WithServiceName(context.Background(), requestedBy), log)

	return nil
}

func (s *Service) writeAudit(ctx context.Context, log *EmailLog) {
	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()

	if err := s.repo.CreateLog(ctx, log); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to write email audit log",
			"to", log.Recipient,
			"error", err,
		)
	}
}

// deliver is where a real SMTP or provider call would go. Delivery is
// simulated with a log line, matching the rest of the pipeline end to end.
func (s *Service) deliver(ctx context.Context, to, subject, message string) {
	s.logger.InfowCtx(ctx, "Email delivered",
		"to", to,
		"subject", subject,
		"bytes", len(message),
	)
}

func (s *Service) ListLogs(ctx context.Context) ([]EmailLog, error) {
	return s.repo.ListLogs(ctx)
}
