package user

import "context"

// Repository はユーザー集約の永続化を行うインターフェースです。
type Repository interface {
	// Save は ID が 0 のユーザーを新規作成し、それ以外は更新します。
	// メールアドレスの一意制約違反は ErrEmailAlreadyExists として返します。
	Save(ctx context.Context, user *User) (*User, error)
	// FindActiveByID は有効なユーザーのみを返します。見つからない場合は ErrUserNotFound です。
	FindActiveByID(ctx context.Context, id int64) (*User, error)
	// FindActiveByIDForUpdate は FindActiveByID と同じ条件で行ロックを取得します。
	FindActiveByIDForUpdate(ctx context.Context, id int64) (*User, error)
	// Delete は指定ユーザーのレコードを物理削除します。補償処理専用です。
	Delete(ctx context.Context, user *User) error
}
