package session

import (
	"context"
	"fmt"

	"github.com/paydesk/remitsheet/internal/model"
)

// Navigation describes how the operator entered the session.
type Navigation string

const (
	Navigate Navigation = "navigate" // normal entry: keep the stored batch
	Reload   Navigation = "reload"   // hard reload: start with a fresh batch
)

// ParseNavigation maps "reload" to Reload and anything else to Navigate.
func ParseNavigation(s string) Navigation {
	if s == string(Reload) {
		return Reload
	}
	return Navigate
}

// Restore returns the batch to start the session with. A Reload discards
// whatever was stored. Unreadable content yields an empty batch together
// with the error, so callers can log it and carry on.
func Restore(ctx context.Context, store Store, key string, nav Navigation) ([]model.TransferItem, error) {
	if nav == Reload {
		if err := store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("discarding batch on reload: %w", err)
		}
		return nil, nil
	}

	data, ok, err := store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	items, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return items, nil
}
