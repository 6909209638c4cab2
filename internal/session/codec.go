package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/money"
)

// ErrCorrupt marks stored content that is not a batch.
var ErrCorrupt = errors.New("stored batch is unreadable")

// storedItem mirrors model.TransferItem but accepts any JSON for the
// monetary fields, since older writers stored them as strings.
type storedItem struct {
	model.Vendor
	AmountPayable json.RawMessage `json:"amountPayable"`
	ManualFee     json.RawMessage `json:"manualFee"`
	ActualAmount  json.RawMessage `json:"actualAmount"`
	FeeReason     string          `json:"feeReason"`
}

// Encode serializes a batch for storage.
func Encode(items []model.TransferItem) ([]byte, error) {
	if items == nil {
		items = []model.TransferItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}
	return data, nil
}

// Decode restores a stored batch. Monetary fields are coerced to whole
// numbers (non-numeric or missing becomes 0, negative inputs become 0) and
// the derived amount is recomputed. Duplicate vendor IDs keep their first
// occurrence.
func Decode(data []byte) ([]model.TransferItem, error) {
	var stored []storedItem
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding batch: %w: %w", ErrCorrupt, err)
	}

	items := make([]model.TransferItem, 0, len(stored))
	seen := make(map[string]bool, len(stored))
	for _, s := range stored {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true

		reason, err := model.ParseFeeReason(s.FeeReason)
		if err != nil {
			reason = model.FeeReasonUnset
		}
		item := model.TransferItem{
			Vendor:        s.Vendor,
			AmountPayable: max(money.Coerce(s.AmountPayable), 0),
			ManualFee:     max(money.Coerce(s.ManualFee), 0),
			ActualAmount:  money.Coerce(s.ActualAmount),
			FeeReason:     reason,
		}
		items = append(items, item.Derive())
	}
	return items, nil
}
