package registration

import (
	"context"

	"github.com/ogurasousui/user-service/internal/core/user"
)

// NewCredential は認証サービスに登録する資格情報です。
type NewCredential struct {
	UserID   int64
	Email    string
	Password string
	Provider user.Provider
	Role     user.Role
	// IdempotencyKey は同一登録処理のリクエストを識別するキーです。
	IdempotencyKey string
}

// AuthClient は認証サービスへの出力ポートです。
// 実装は通信・タイムアウト・リモート拒否をエラーとして返し、内部で再試行しません。
type AuthClient interface {
	NotifyUserCreated(ctx context.Context, cred NewCredential) error
}
