package ports

import (
	"context"
	"time"
)

// ResetNotice is handed to a notifier after a reset token is issued.
type ResetNotice struct {
	Email     string
	Username  string
	Token     string
	ExpiresAt time.Time
}

// ResetNotifier delivers reset tokens out of band (e-mail, SMS, ...).
type ResetNotifier interface {
	NotifyResetIssued(ctx context.Context, notice ResetNotice) error
}

// NoticeQueue accepts notices for asynchronous delivery. Enqueue must not
// block the request path for long.
type NoticeQueue interface {
	Enqueue(notice ResetNotice)
}
