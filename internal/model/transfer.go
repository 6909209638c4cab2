package model

import "fmt"

// FeeReason records why a line carries no deducted transfer fee.
type FeeReason string

const (
	FeeReasonUnset  FeeReason = ""       // fee deducted from the transfer
	FeeReasonCash   FeeReason = "cash"   // fee paid separately in cash
	FeeReasonWaived FeeReason = "waived" // fee waived by the bank
)

// ParseFeeReason maps user input to a FeeReason. "unset", "none" and the
// empty string all mean FeeReasonUnset.
func ParseFeeReason(s string) (FeeReason, error) {
	switch s {
	case "", "unset", "none":
		return FeeReasonUnset, nil
	case string(FeeReasonCash):
		return FeeReasonCash, nil
	case string(FeeReasonWaived):
		return FeeReasonWaived, nil
	}
	return FeeReasonUnset, fmt.Errorf("unknown fee reason %q", s)
}

// Overrides reports whether the reason zeroes the manual fee.
func (r FeeReason) Overrides() bool {
	return r == FeeReasonCash || r == FeeReasonWaived
}

// String returns the reason, or "unset" for the empty value.
func (r FeeReason) String() string {
	if r == FeeReasonUnset {
		return "unset"
	}
	return string(r)
}

// TransferItem is a vendor staged for payment in the current batch.
type TransferItem struct {
	Vendor
	AmountPayable int64     `json:"amountPayable"`
	ManualFee     int64     `json:"manualFee"`
	ActualAmount  int64     `json:"actualAmount"` // derived, never set directly
	FeeReason     FeeReason `json:"feeReason"`
}

// NewTransferItem copies a vendor into a zeroed batch line.
func NewTransferItem(v Vendor) TransferItem {
	return TransferItem{Vendor: v}
}

// Derive recomputes ActualAmount from the other monetary fields.
func (t TransferItem) Derive() TransferItem {
	if t.FeeReason.Overrides() {
		t.ManualFee = 0
		t.ActualAmount = t.AmountPayable
		return t
	}
	t.ActualAmount = t.AmountPayable - t.ManualFee
	return t
}

// Eligible reports whether the line should be submitted for generation.
func (t TransferItem) Eligible() bool {
	return t.AmountPayable > 0 || t.ManualFee > 0 || t.FeeReason != FeeReasonUnset
}

// Totals is the reduction of a batch's monetary columns.
type Totals struct {
	Payable int64 `json:"totalPayable"`
	Fee     int64 `json:"totalFee"`
	Actual  int64 `json:"totalActual"`
}

// Sum reduces items into Totals.
func Sum(items []TransferItem) Totals {
	var t Totals
	for _, it := range items {
		t.Payable += it.AmountPayable
		t.Fee += it.ManualFee
		t.Actual += it.ActualAmount
	}
	return t
}
