package auth

import "errors"

var (
	// ErrTransport はネットワーク障害・タイムアウト・サーバーエラーなど、通信レベルの失敗を表します。
	ErrTransport = errors.New("auth: transport failure")
	// ErrRejected は認証サービスがリクエストを拒否したことを表します。
	ErrRejected = errors.New("auth: request rejected")
)
