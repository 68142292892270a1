package registration

import (
	"context"
	"time"
)

// OrphanedRegistration は補償処理に失敗し、認証情報を持たないまま残ったユーザーを表します。
// 手動での突き合わせに必要な情報のみを保持します。
type OrphanedRegistration struct {
	SagaID        string    `json:"saga_id"`
	UserID        int64     `json:"user_id"`
	Email         string    `json:"email"`
	Cause         string    `json:"cause"`
	RollbackError string    `json:"rollback_error"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CompensationReporter は補償失敗を呼び出し元とは別経路で通知します。
type CompensationReporter interface {
	ReportOrphan(ctx context.Context, orphan OrphanedRegistration) error
}
