package user

import (
	"context"
	"fmt"
	"time"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Service はユーザーに関するユースケースをまとめます。
// 更新系の操作はそれぞれ単一のトランザクションで実行されます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase はユーザーユースケースの公開インターフェースです。
type UseCase interface {
	RegisterUser(ctx context.Context, in RegisterUserInput) (*User, error)
	FindActiveUserByID(ctx context.Context, id int64) (*User, error)
	GetUser(ctx context.Context, id int64) (*View, error)
	Update(ctx context.Context, in UpdateUserInput) error
	DeleteByID(ctx context.Context, id int64) error
	Rollback(ctx context.Context, user *User) error
}

// NewService は Service を生成します。clock と tx は nil を許容します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// RegisterUserInput はユーザー登録時の入力です。
type RegisterUserInput struct {
	Email    string
	Name     string
	Phone    string
	Provider Provider
}

// UpdateUserInput はユーザー更新時の入力です。nil の項目は変更しません。
type UpdateUserInput struct {
	ID    int64
	Name  *string
	Phone *string
}

// View は照会用のユーザー表現です。
type View struct {
	ID    int64
	Email string
	Name  string
	Phone string
}

// RegisterUser は新しいユーザーを作成して永続化します。
// メールアドレスの重複は ErrEmailAlreadyExists になります。
func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (*User, error) {
	email, err := NewEmail(in.Email)
	if err != nil {
		return nil, err
	}

	phone, err := NewPhone(in.Phone)
	if err != nil {
		return nil, err
	}

	u, err := NewUser(email, in.Name, phone, in.Provider, s.clock.Now())
	if err != nil {
		return nil, err
	}

	var created *User
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		saved, err := s.repo.Save(txCtx, u)
		if err != nil {
			return err
		}
		created = saved
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// FindActiveUserByID は有効なユーザーを取得します。
// 退会済みユーザーは存在しないユーザーと同じく ErrUserNotFound になります。
func (s *Service) FindActiveUserByID(ctx context.Context, id int64) (*User, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var found *User
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		u, err := s.repo.FindActiveByID(txCtx, id)
		if err != nil {
			return err
		}
		found = u
		return nil
	}); err != nil {
		return nil, err
	}

	return found, nil
}

// GetUser は有効なユーザーを照会用の形式で返します。
func (s *Service) GetUser(ctx context.Context, id int64) (*View, error) {
	u, err := s.FindActiveUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &View{
		ID:    u.ID,
		Email: u.Email.String(),
		Name:  u.Name,
		Phone: u.Phone.String(),
	}, nil
}

// Update は有効なユーザーの名前と電話番号を部分更新します。
// 空文字列の電話番号は登録済みの番号を消去します。
func (s *Service) Update(ctx context.Context, in UpdateUserInput) error {
	if in.ID <= 0 {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	var phone *Phone
	if in.Phone != nil {
		p, err := NewPhone(*in.Phone)
		if err != nil {
			return err
		}
		phone = &p
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindActiveByIDForUpdate(txCtx, in.ID)
		if err != nil {
			return err
		}

		if err := existing.Update(in.Name, phone, s.clock.Now()); err != nil {
			return err
		}

		_, err = s.repo.Save(txCtx, existing)
		return err
	})
}

// DeleteByID はユーザーを退会状態にします。レコードは履歴として残ります。
// 既に退会済みの場合は ErrUserNotFound になります。
func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("id: %w", ErrInvalidID)
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindActiveByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		existing.Quit(s.clock.Now())

		_, err = s.repo.Save(txCtx, existing)
		return err
	})
}

// Rollback は直前に RegisterUser で作成したユーザーを物理削除する補償処理です。
// Quit と異なりメールアドレスは再び登録可能になります。
func (s *Service) Rollback(ctx context.Context, u *User) error {
	if u == nil || u.ID <= 0 {
		return fmt.Errorf("rollback: %w", ErrInvalidID)
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, u)
	})
}
