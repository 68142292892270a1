package user

import (
	"regexp"
	"strings"
)

var (
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// Phone は任意項目の連絡先電話番号を表す値オブジェクトです。
// ゼロ値は「未設定」を意味します。
type Phone struct {
	value string
}

// NewPhone は raw を検証・正規化して Phone を生成します。
// 空文字列は未設定の Phone として扱います。
func NewPhone(raw string) (Phone, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Phone{}, nil
	}

	normalized := phoneSeparators.Replace(trimmed)
	if !phonePattern.MatchString(normalized) {
		return Phone{}, ErrInvalidPhone
	}

	return Phone{value: normalized}, nil
}

// String は正規化済みの番号を返します。未設定の場合は空文字列です。
func (p Phone) String() string {
	return p.value
}

// Present は番号が設定されているかどうかを返します。
func (p Phone) Present() bool {
	return p.value != ""
}

// Equal は正規化後の値で比較します。
func (p Phone) Equal(other Phone) bool {
	return p.value == other.value
}
