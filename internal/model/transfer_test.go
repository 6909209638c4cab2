package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeeReason(t *testing.T) {
	tests := []struct {
		in   string
		want FeeReason
	}{
		{"", FeeReasonUnset},
		{"unset", FeeReasonUnset},
		{"none", FeeReasonUnset},
		{"cash", FeeReasonCash},
		{"waived", FeeReasonWaived},
	}
	for _, tt := range tests {
		got, err := ParseFeeReason(tt.in)
		require.NoError(t, err, "ParseFeeReason(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseFeeReason(%q)", tt.in)
	}

	_, err := ParseFeeReason("card")
	assert.Error(t, err)
}

func TestFeeReasonString(t *testing.T) {
	assert.Equal(t, "unset", FeeReasonUnset.String())
	assert.Equal(t, "cash", FeeReasonCash.String())
}

func TestDerive(t *testing.T) {
	item := TransferItem{AmountPayable: 1000, ManualFee: 15}.Derive()
	assert.Equal(t, int64(985), item.ActualAmount)

	item.FeeReason = FeeReasonWaived
	item = item.Derive()
	assert.Equal(t, int64(0), item.ManualFee)
	assert.Equal(t, int64(1000), item.ActualAmount)
}

func TestEligible(t *testing.T) {
	assert.False(t, TransferItem{}.Eligible())
	assert.True(t, TransferItem{AmountPayable: 1}.Eligible())
	assert.True(t, TransferItem{ManualFee: 30}.Eligible())
	assert.True(t, TransferItem{FeeReason: FeeReasonCash}.Eligible())
}

func TestSum(t *testing.T) {
	assert.Equal(t, Totals{}, Sum(nil))

	items := []TransferItem{
		{AmountPayable: 200, ManualFee: 15, ActualAmount: 185},
		{AmountPayable: 1000, ActualAmount: 1000, FeeReason: FeeReasonCash},
	}
	assert.Equal(t, Totals{Payable: 1200, Fee: 15, Actual: 1185}, Sum(items))
}

func TestMissingRequired(t *testing.T) {
	v := NewVendor{Name: "Acme", Bank: " "}
	assert.Equal(t, []string{"bank", "bankCode", "accountNumber"}, v.MissingRequired())

	v = NewVendor{Name: "Acme", Bank: "First Bank", BankCode: "0071234", AccountNumber: "123"}
	assert.Empty(t, v.MissingRequired())
}
