package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/user-service/internal/core/user"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeUsers struct {
	registerErr error
	rollbackErr error

	registered     []user.RegisterUserInput
	rolledBack     []*user.User
	rollbackCtxErr error
	nextID         int64
}

func (f *fakeUsers) RegisterUser(_ context.Context, in user.RegisterUserInput) (*user.User, error) {
	f.registered = append(f.registered, in)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	email, err := user.NewEmail(in.Email)
	if err != nil {
		return nil, err
	}
	u, err := user.NewUser(email, in.Name, user.Phone{}, in.Provider, fixedNow)
	if err != nil {
		return nil, err
	}
	f.nextID++
	u.ID = f.nextID
	return u, nil
}

func (f *fakeUsers) Rollback(ctx context.Context, u *user.User) error {
	f.rollbackCtxErr = ctx.Err()
	f.rolledBack = append(f.rolledBack, u)
	return f.rollbackErr
}

type fakeAuth struct {
	err   error
	calls []NewCredential
	hook  func(ctx context.Context)
}

func (f *fakeAuth) NotifyUserCreated(ctx context.Context, cred NewCredential) error {
	f.calls = append(f.calls, cred)
	if f.hook != nil {
		f.hook(ctx)
	}
	return f.err
}

type fakeReporter struct {
	err     error
	orphans []OrphanedRegistration
}

func (f *fakeReporter) ReportOrphan(_ context.Context, orphan OrphanedRegistration) error {
	f.orphans = append(f.orphans, orphan)
	return f.err
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestService_Register_Success(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	auth := &fakeAuth{}
	logger, logs := newObservedLogger()
	svc := NewService(users, auth, nil, logger)

	created, err := svc.Register(context.Background(), RegisterInput{
		Email:    "a@x.com",
		Password: "pw",
		Name:     "A",
		Provider: user.ProviderLocal,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if created.ID != 1 {
		t.Fatalf("expected id 1, got %d", created.ID)
	}

	if len(auth.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(auth.calls))
	}
	cred := auth.calls[0]
	if cred.UserID != 1 || cred.Email != "a@x.com" || cred.Password != "pw" {
		t.Fatalf("unexpected credential %+v", cred)
	}
	if cred.Role != user.RoleUser || cred.Provider != user.ProviderLocal {
		t.Fatalf("unexpected role/provider %s/%s", cred.Role, cred.Provider)
	}
	if cred.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key to be set")
	}

	if len(users.rolledBack) != 0 {
		t.Fatalf("expected no rollback on success")
	}

	if logs.FilterMessage("registration.completed").Len() != 1 {
		t.Fatalf("expected completion log, got %v", logs.All())
	}
}

func TestService_Register_ConflictSkipsNotifyAndCompensation(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{registerErr: user.ErrEmailAlreadyExists}
	auth := &fakeAuth{}
	svc := NewService(users, auth, nil, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "pw2", Name: "B"})
	if !errors.Is(err, user.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}

	if len(auth.calls) != 0 || len(users.rolledBack) != 0 {
		t.Fatalf("expected no notification and no rollback")
	}
}

func TestService_Register_RequiresPassword(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	svc := NewService(users, &fakeAuth{}, nil, nil)

	if _, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "  ", Name: "A"}); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if len(users.registered) != 0 {
		t.Fatalf("expected no user creation")
	}
}

func TestService_Register_NotifyFailureCompensates(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("auth: %w", context.DeadlineExceeded)
	users := &fakeUsers{}
	reporter := &fakeReporter{}
	logger, logs := newObservedLogger()
	svc := NewService(users, &fakeAuth{err: cause}, reporter, logger)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "b@x.com", Password: "pw", Name: "B"})

	var extErr *ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
	if !errors.Is(err, ErrExternalService) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected error to wrap sentinel and cause, got %v", err)
	}

	if len(users.rolledBack) != 1 || users.rolledBack[0].ID != 1 {
		t.Fatalf("expected rollback of user 1, got %+v", users.rolledBack)
	}

	if logs.FilterMessage("registration.compensated").Len() != 1 {
		t.Fatalf("expected compensated log, got %v", logs.All())
	}
	if len(reporter.orphans) != 0 {
		t.Fatalf("expected no orphan report after successful compensation")
	}
}

func TestService_Register_CompensationFailureIsLoggedAndReported(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	rollbackErr := errors.New("db down")
	users := &fakeUsers{rollbackErr: rollbackErr}
	reporter := &fakeReporter{}
	logger, logs := newObservedLogger()
	svc := NewService(users, &fakeAuth{err: cause}, reporter, logger)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "c@x.com", Password: "pw", Name: "C"})

	if !errors.Is(err, ErrExternalService) || !errors.Is(err, cause) {
		t.Fatalf("expected ExternalServiceError wrapping cause, got %v", err)
	}
	if errors.Is(err, rollbackErr) {
		t.Fatalf("rollback failure must not surface to the caller: %v", err)
	}

	failed := logs.FilterMessage("registration.compensation_failed")
	if failed.Len() != 1 {
		t.Fatalf("expected compensation failure log, got %v", logs.All())
	}
	entry := failed.All()[0]
	if entry.Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["user_id"] != int64(1) || fields["email"] != "c@x.com" {
		t.Fatalf("unexpected log fields %v", fields)
	}
	if fields["rollback_error"] != "db down" {
		t.Fatalf("expected rollback_error field, got %v", fields["rollback_error"])
	}

	if len(reporter.orphans) != 1 {
		t.Fatalf("expected one orphan report, got %d", len(reporter.orphans))
	}
	orphan := reporter.orphans[0]
	if orphan.UserID != 1 || orphan.Email != "c@x.com" || orphan.RollbackError != "db down" || orphan.SagaID == "" {
		t.Fatalf("unexpected orphan %+v", orphan)
	}
	if orphan.SagaID != fields["saga_id"] {
		t.Fatalf("expected saga id to match log, got %s and %v", orphan.SagaID, fields["saga_id"])
	}
}

func TestService_Register_ReporterFailureDoesNotChangeError(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{rollbackErr: errors.New("db down")}
	reporter := &fakeReporter{err: errors.New("broker unavailable")}
	logger, logs := newObservedLogger()
	svc := NewService(users, &fakeAuth{err: errors.New("503")}, reporter, logger)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "d@x.com", Password: "pw", Name: "D"})
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if logs.FilterMessage("registration.orphan_report_failed").Len() != 1 {
		t.Fatalf("expected orphan report failure log, got %v", logs.All())
	}
}

func TestService_Register_CancelledCallerStillCompensates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	users := &fakeUsers{}
	auth := &fakeAuth{
		hook: func(context.Context) { cancel() },
		err:  context.Canceled,
	}
	svc := NewService(users, auth, nil, nil)

	_, err := svc.Register(ctx, RegisterInput{Email: "e@x.com", Password: "pw", Name: "E"})
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}

	if len(users.rolledBack) != 1 {
		t.Fatalf("expected compensation to run")
	}
	if users.rollbackCtxErr != nil {
		t.Fatalf("expected compensation context to outlive caller cancellation, got %v", users.rollbackCtxErr)
	}
}

// memoryRepository は user.Service を通した登録フロー確認用の最小実装です。
type memoryRepository struct {
	mu   sync.Mutex
	rows map[int64]user.User
	seq  int64
}

func (m *memoryRepository) Save(_ context.Context, u *user.User) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		for _, row := range m.rows {
			if row.Email.Equal(u.Email) {
				return nil, user.ErrEmailAlreadyExists
			}
		}
		m.seq++
		saved := *u
		saved.ID = m.seq
		m.rows[saved.ID] = saved
		return &saved, nil
	}
	m.rows[u.ID] = *u
	saved := *u
	return &saved, nil
}

func (m *memoryRepository) FindActiveByID(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || !row.IsActive() {
		return nil, user.ErrUserNotFound
	}
	return &row, nil
}

func (m *memoryRepository) FindActiveByIDForUpdate(ctx context.Context, id int64) (*user.User, error) {
	return m.FindActiveByID(ctx, id)
}

func (m *memoryRepository) Delete(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[u.ID]; !ok {
		return user.ErrUserNotFound
	}
	delete(m.rows, u.ID)
	return nil
}

func TestRegistrationScenario(t *testing.T) {
	t.Parallel()

	repo := &memoryRepository{rows: make(map[int64]user.User)}
	users := user.NewService(repo, nil, nil)
	ctx := context.Background()

	auth := &fakeAuth{}
	svc := NewService(users, auth, nil, nil)

	first, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw", Name: "A"})
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("expected id 1, got %d", first.ID)
	}

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw2", Name: "B"}); !errors.Is(err, user.ErrEmailAlreadyExists) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected no second row, got %d rows", len(repo.rows))
	}

	auth.err = fmt.Errorf("auth: %w", context.DeadlineExceeded)
	_, err = svc.Register(ctx, RegisterInput{Email: "b@x.com", Password: "pw", Name: "B"})
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}

	orphanID := auth.calls[len(auth.calls)-1].UserID
	if _, err := users.FindActiveUserByID(ctx, orphanID); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected compensated user to be absent, got %v", err)
	}

	auth.err = nil
	if _, err := svc.Register(ctx, RegisterInput{Email: "b@x.com", Password: "pw", Name: "B"}); err != nil {
		t.Fatalf("expected email to be reusable after compensation, got %v", err)
	}
}
