package users

import (
	"context"

	"nimbus/internal/broker"
	"nimbus/internal/constants"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
	"nimbus/pkg/metrics"
	"nimbus/pkg/models"
)

type Service struct {
	repo      Repository
	publisher broker.Publisher
	logger    logger.Logger
}

func NewService(repo Repository, publisher broker.Publisher, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    log,
	}
}

func (s *Service) RegisterUser(ctx context.Context, req RegisterUserRequest) (*User, error) {
	if req.Name == "" || req.Email == "" {
		metrics.UserRegistrationsTotal.WithLabelValues("validation_error").Inc()
		return nil, pkgerrors.ErrValidation.WithDetail("message", "Name and email are required")
	}

	user := &User{
		Name:  req.Name,
		Email: req.Email,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		metrics.UserRegistrationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.UserRegistrationsTotal.WithLabelValues("success").Inc()
	if count, err := s.repo.Count(ctx); err == nil {
		metrics.ActiveUsersGauge.Set(float64(count))
	}

	s.logger.InfowCtx(ctx, "User registered",
		"user_id", user.ID,
		"email", user.Email,
	)

	s.publishUserCreated(ctx, user)

	return user, nil
}

// publishUserCreated emits the user_created event. A publish failure does
// not fail the registration: the user row is the source of truth, the event
// is a best-effort notification the caller cannot roll back anyway.
func (s *Service) publishUserCreated(ctx context.Context, user *User) {
	if s.publisher == nil {
		return
	}

	event := models.NewEvent(constants.EventTypeUserCreated, map[string]interface{}{
		"userId": user.ID,
		"name":   user.Name,
		"email":  user.Email,
	})

	if err := s.publisher.Publish(ctx, constants.RoutingKeyUserCreated, event); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to publish user_created event",
			"user_id", user.ID,
			"error", err,
		)
		return
	}

	s.logger.InfowCtx(ctx, "Published user_created event",
		"user_id", user.ID,
		"event_id", event.ID,
	)
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}
