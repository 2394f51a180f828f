package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/datealchemy/alchemy/internal/auth"
)

const defaultPollInterval = 30 * time.Second

// StartApprovalPoller launches a background goroutine that re-runs session
// bootstrap while the signed-in user is waiting for approval, so the
// dashboard opens once an administrator flips the flag. It returns
// immediately.
func StartApprovalPoller(ctx context.Context, provider *auth.Provider, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if !awaitingApproval(provider.State()) {
				continue
			}
			log.Debug().Msg("re-checking approval")
			provider.Bootstrap(ctx)
		}
	}()
}

func awaitingApproval(s auth.State) bool {
	return !s.Loading && s.Authenticated() && !s.Approved()
}
