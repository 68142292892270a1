package registration

import (
	"errors"
	"fmt"
)

var (
	// ErrExternalService は外部サービス呼び出しの失敗により登録が取り消された場合に返却されます。
	ErrExternalService = errors.New("external service error")
	// ErrInvalidPassword はパスワードが未入力の場合に返却されます。
	ErrInvalidPassword = errors.New("invalid password")
)

// ExternalServiceError は認証サービスへの通知失敗を表します。
// errors.Is で ErrExternalService と元の通信エラーの双方に一致します。
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s call failed, registration cancelled: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() []error {
	return []error{ErrExternalService, e.Err}
}
