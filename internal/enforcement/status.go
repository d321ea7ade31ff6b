package enforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

// StatusReader is the read side of the store used for operator lookups.
type StatusReader interface {
	Ban(ctx context.Context, userID string) (string, time.Duration, error)
	Strikes(ctx context.Context, userID string) (int64, error)
}

// Status reports a user's ban and strike count. Ban values written by other
// services are returned raw with Parsed left nil.
func Status(ctx context.Context, store StatusReader, userID string) (*models.BanStatus, error) {
	out := &models.BanStatus{UserID: userID}

	value, ttl, err := store.Ban(ctx, userID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read ban: %w", err)
	default:
		out.Banned = true
		out.Value = value
		out.TTL = ttl
		if ban, ok := models.ParseBanValue(value); ok {
			out.Parsed = &ban
		}
	}

	strikes, err := store.Strikes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read strikes: %w", err)
	}
	out.Strikes = strikes
	return out, nil
}
