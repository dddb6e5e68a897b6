package search

import (
	"context"
	"time"
)

// Sleeper は待機処理を抽象化する（テストで差し替える）
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

// Sleep は d だけ待機する。途中で ctx がキャンセルされた場合はそのエラーを返す
func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
