package user

import (
	"net/mail"
	"strings"
)

const maxEmailLength = 254

// Email は正規化済みのメールアドレスを表す値オブジェクトです。
type Email struct {
	value string
}

// NewEmail は raw を検証・正規化して Email を生成します。
func NewEmail(raw string) (Email, error) {
	normalized, err := normalizeEmail(raw)
	if err != nil {
		return Email{}, err
	}
	return Email{value: normalized}, nil
}

// String は正規化済みのアドレスを返します。
func (e Email) String() string {
	return e.value
}

// IsZero は未設定かどうかを返します。
func (e Email) IsZero() bool {
	return e.value == ""
}

// Equal は正規化後の値で比較します。
func (e Email) Equal(other Email) bool {
	return e.value == other.value
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxEmailLength {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", ErrInvalidEmail
	}

	// 表示名付きの形式 ("Name <a@example.com>") は受け付けない
	if addr.Name != "" || !strings.EqualFold(addr.Address, strings.Trim(trimmed, "<>")) {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(addr.Address), nil
}
