// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/holomush/authkit/pkg/errutil"
)

// RunSweeper calls DeleteExpired every interval until ctx is done. onSwept,
// if non-nil, receives the count of each successful sweep.
func RunSweeper(ctx context.Context, sweeper Sweeper, interval time.Duration, logger *slog.Logger, onSwept func(int64)) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogErrorContext(ctx, logger, "session sweep failed", err)
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "expired sessions removed", "count", n)
			}
			if onSwept != nil {
				onSwept(n)
			}
		}
	}
}
