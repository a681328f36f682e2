package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RecoveryTokenLedger remembers which password-recovery tokens have
// already been redeemed.
type RecoveryTokenLedger struct {
	client redis.Cmdable
}

func NewRecoveryTokenLedger(client redis.Cmdable) *RecoveryTokenLedger {
	return &RecoveryTokenLedger{client: client}
}

// Redeem marks tokenID as used for ttl. It returns false when the token
// was redeemed before.
func (l *RecoveryTokenLedger) Redeem(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := l.client.SetNX(ctx, recoveryTokenKey(tokenID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redeem recovery token: %w", err)
	}
	return ok, nil
}

// Release forgets a redeemed token so it can be redeemed again.
func (l *RecoveryTokenLedger) Release(ctx context.Context, tokenID string) error {
	if err := l.client.Del(ctx, recoveryTokenKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("release recovery token: %w", err)
	}
	return nil
}

func recoveryTokenKey(tokenID string) string {
	return fmt.Sprintf("recover_token:%s", tokenID)
}
