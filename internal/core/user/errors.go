package user

import "errors"

var (
	// ErrUserNotFound はユーザーが存在しない、または退会済みの場合に返却されます。
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailAlreadyExists はメールアドレス重複時に返却されます。
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidEmail はメールアドレスが不正な場合に返却されます。
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPhone は電話番号が不正な場合に返却されます。
	ErrInvalidPhone = errors.New("invalid phone")
	// ErrInvalidName は名前が不正な場合に返却されます。
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidProvider は認証プロバイダが不正な場合に返却されます。
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrInvalidID はIDが不正な場合に返却されます。
	ErrInvalidID = errors.New("invalid id")
)

// IsValidationError は入力値の検証エラーかどうかを判定します。
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrInvalidPhone) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidProvider) ||
		errors.Is(err, ErrInvalidID)
}
