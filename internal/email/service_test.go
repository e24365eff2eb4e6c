package email

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus/internal/constants"
	"nimbus/internal/logger"
	pkgerrors "nimbus/pkg/errors"
	"nimbus/pkg/models"
	"nimbus/pkg/retry"
)

type fakeRepo struct {
	mu        sync.Mutex
	logs      []EmailLog
	createErr error
}

func (r *fakeRepo) CreateLog(ctx context.Context, log *EmailLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.logs = append(r.logs, *log)
	return nil
}

func (r *fakeRepo) ListLogs(ctx context.Context) ([]EmailLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EmailLog(nil), r.logs...), nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

func TestHandleUserCreated(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, logger.NopLogger())

	event := models.NewEvent(constants.EventTypeUserCreated, map[string]interface{}{
		"userId": "u1",
		"name":   "Alice",
		"email":  "alice@example.com",
	})

	err := svc.HandleUserCreated(context.Background(), event)
	require.NoError(t, err)

	require.Equal(t, 1, repo.count())
	log := repo.logs[0]
	assert.Equal(t, "alice@example.com", log.Recipient)
	assert.Equal(t, constants.WelcomeEmailSubject, log.Subject)
	assert.Equal(t, constants.EmailStatusSent, log.Status)
	assert.Equal(t, "u1", log.UserID)
	assert.Contains(t, log.Message, "Alice")
}

func TestHandleUserCreatedMissingEmail(t *testing.T) {
	svc := NewService(&fakeRepo{}, logger.NopLogger())

	event := models.NewEvent(constants.EventTypeUserCreated, map[string]interface{}{
		"userId": "u1",
	})

	err := svc.HandleUserCreated(context.Background(), event)
	require.Error(t, err)

	// A payload that can never be handled must not be requeued.
	var fatalErr retry.FatalError
	require.ErrorAs(t, err, &fatalErr)
	assert.True(t, fatalErr.IsFatal())
}

func TestHandleUserCreatedRepositoryError(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("postgres down")}
	svc := NewService(repo, logger.NopLogger())

	event := models.NewEvent(constants.EventTypeUserCreated, map[string]interface{}{
		"email": "alice@example.com",
	})

	// The email was delivered, so the delivery must be acked even though the
	// log row was lost. Returning an error would requeue and re-send it.
	err := svc.HandleUserCreated(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.count())
}

func TestSendEmail(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, logger.NopLogger())

	err := svc.SendEmail(context.Background(), SendEmailRequest{
		To:      "bob@example.com",
		Subject: "Hi",
		Message: "Hello Bob",
	}, "user-service")
	require.NoError(t, err)

	// The audit row is written asynchronously.
	require.Eventually(t, func() bool {
		return repo.count() == 1
	}, time.Second, 10*time.Millisecond)

	log := repo.logs[0]
	assert.Equal(t, "bob@example.com", log.Recipient)
	assert.Equal(t, "user-service", log.RequestedBy)
	assert.Equal(t, constants.EmailStatusSent, log.Status)
}

func TestSendEmailValidation(t *testing.T) {
	svc := NewService(&fakeRepo{}, logger.NopLogger())

	tests := []struct {
		name string
		req  SendEmailRequest
	}{
		{name: "missing to", req: SendEmailRequest{Subject: "s", Message: "m"}},
		{name: "missing subject", req: SendEmailRequest{To: "a@b.c", Message: "m"}},
		{name: "missing message", req: SendEmailRequest{To: "a@b.c", Subject: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SendEmail(context.Background(), tt.req, "user-service")
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestSendEmailSucceedsDespiteAuditFailure(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("postgres down")}
	svc := NewService(repo, logger.NopLogger())

	err := svc.SendEmail(context.Background(), SendEmailRequest{
		To:      "bob@example.com",
		Subject: "Hi",
		Message: "Hello",
	}, "user-service")
	assert.NoError(t, err)
}
