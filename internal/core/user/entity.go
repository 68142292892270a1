package user

import (
	"strings"
	"time"
	"unicode/utf8"
)

const maxNameLength = 100

// Status はユーザーの状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Role はユーザーの権限を表します。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Provider は認証プロバイダを表します。
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderKakao  Provider = "kakao"
	ProviderNaver  Provider = "naver"
)

// ParseProvider は文字列から Provider を解釈します。空文字列は ProviderLocal になります。
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return ProviderLocal, nil
	}
	if !p.Valid() {
		return "", ErrInvalidProvider
	}
	return p, nil
}

// User はユーザー集約のルートです。
// ID は永続化時にリポジトリが採番し、それまでは 0 です。
type User struct {
	ID        int64
	Email     Email
	Name      string
	Phone     Phone
	Status    Status
	Role      Role
	Provider  Provider
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser は自己登録ユーザーを生成します。Role は常に RoleUser です。
func NewUser(email Email, name string, phone Phone, provider Provider, now time.Time) (*User, error) {
	if email.IsZero() {
		return nil, ErrInvalidEmail
	}

	normalizedName, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	if provider == "" {
		provider = ProviderLocal
	}
	if !provider.Valid() {
		return nil, ErrInvalidProvider
	}

	return &User{
		Email:     email,
		Name:      normalizedName,
		Phone:     phone,
		Status:    StatusActive,
		Role:      RoleUser,
		Provider:  provider,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Update は名前と電話番号を部分更新します。nil の項目は現在値を維持します。
func (u *User) Update(name *string, phone *Phone, now time.Time) error {
	if name != nil {
		normalized, err := normalizeName(*name)
		if err != nil {
			return err
		}
		u.Name = normalized
	}

	if phone != nil {
		u.Phone = *phone
	}

	u.UpdatedAt = now
	return nil
}

// Quit はユーザーを退会状態 (論理削除) にします。
func (u *User) Quit(now time.Time) {
	u.Status = StatusInactive
	u.UpdatedAt = now
}

// Activate は管理操作によってユーザーを再有効化します。
func (u *User) Activate(now time.Time) {
	u.Status = StatusActive
	u.UpdatedAt = now
}

// IsActive は有効なユーザーかどうかを返します。
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// Valid は定義済みの Status かどうかを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

// Valid は定義済みの Role かどうかを返します。
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// Valid は定義済みの Provider かどうかを返します。
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderKakao, ProviderNaver:
		return true
	default:
		return false
	}
}
