package registration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/user-service/internal/core/user"
	"go.uber.org/zap"
)

const (
	authServiceName            = "auth-service"
	defaultCompensationTimeout = 5 * time.Second
)

// UserRegistrar は登録処理が依存するユーザーサービスの操作です。
type UserRegistrar interface {
	RegisterUser(ctx context.Context, in user.RegisterUserInput) (*user.User, error)
	Rollback(ctx context.Context, u *user.User) error
}

// UseCase は会員登録の公開インターフェースです。
type UseCase interface {
	Register(ctx context.Context, in RegisterInput) (*user.User, error)
}

// RegisterInput は会員登録時の入力です。
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Provider user.Provider
}

// Service はローカルのユーザー作成と認証サービスへの資格情報登録を調整します。
//
// 二つの手順は単一のトランザクションではありません。通知に失敗した場合は
// ユーザーを物理削除する補償処理を一度だけ試みます。補償自体が失敗した場合は
// ログと CompensationReporter にのみ記録され、呼び出し元には常に
// ExternalServiceError が返ります。
type Service struct {
	users               UserRegistrar
	auth                AuthClient
	reporter            CompensationReporter
	logger              *zap.Logger
	clock               user.Clock
	compensationTimeout time.Duration
}

// NewService は Service を生成します。reporter と logger は nil を許容します。
func NewService(users UserRegistrar, auth AuthClient, reporter CompensationReporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:               users,
		auth:                auth,
		reporter:            reporter,
		logger:              logger,
		clock:               systemClock{},
		compensationTimeout: defaultCompensationTimeout,
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Register は会員登録を実行します。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	if strings.TrimSpace(in.Password) == "" {
		return nil, ErrInvalidPassword
	}

	created, err := s.users.RegisterUser(ctx, user.RegisterUserInput{
		Email:    in.Email,
		Name:     in.Name,
		Phone:    in.Phone,
		Provider: in.Provider,
	})
	if err != nil {
		// ローカルの状態は変化していないため補償は不要
		return nil, err
	}

	sagaID := uuid.NewString()
	log := s.logger.With(
		zap.String("saga_id", sagaID),
		zap.Int64("user_id", created.ID),
	)

	notifyErr := s.auth.NotifyUserCreated(ctx, NewCredential{
		UserID:         created.ID,
		Email:          created.Email.String(),
		Password:       in.Password,
		Provider:       created.Provider,
		Role:           created.Role,
		IdempotencyKey: sagaID,
	})
	if notifyErr == nil {
		log.Info("registration.completed")
		return created, nil
	}

	s.compensate(ctx, log, sagaID, created, notifyErr)

	return nil, &ExternalServiceError{Service: authServiceName, Err: notifyErr}
}

// compensate はコミット済みのユーザーを取り消します。呼び出し元のキャンセルには影響されません。
func (s *Service) compensate(ctx context.Context, log *zap.Logger, sagaID string, created *user.User, cause error) {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	rollbackErr := s.users.Rollback(compCtx, created)
	if rollbackErr == nil {
		log.Warn("registration.compensated", zap.NamedError("cause", cause))
		return
	}

	log.Error("registration.compensation_failed",
		zap.String("email", created.Email.String()),
		zap.NamedError("cause", cause),
		zap.NamedError("rollback_error", rollbackErr),
	)

	if s.reporter == nil {
		return
	}

	orphan := OrphanedRegistration{
		SagaID:        sagaID,
		UserID:        created.ID,
		Email:         created.Email.String(),
		Cause:         cause.Error(),
		RollbackError: rollbackErr.Error(),
		OccurredAt:    s.clock.Now(),
	}
	if err := s.reporter.ReportOrphan(compCtx, orphan); err != nil {
		log.Error("registration.orphan_report_failed", zap.Error(err))
	}
}
