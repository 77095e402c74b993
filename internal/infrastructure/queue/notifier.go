package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-recovery/internal/core/ports"
)

// LogNotifier stands in for a mail or SMS gateway. It records that a notice
// would have been sent and never writes the token itself.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyResetIssued(_ context.Context, notice ports.ResetNotice) error {
	n.log.Info().
		Str("email", notice.Email).
		Str("username", notice.Username).
		Str("token", redact(notice.Token)).
		Time("expires_at", notice.ExpiresAt).
		Msg("password reset notice")
	return nil
}

// redact keeps a short prefix so operators can correlate log lines.
func redact(token string) string {
	const keep = 4
	if len(token) <= keep {
		return "****"
	}
	return token[:keep] + "****"
}
