package vendorform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/sheets"
)

const defaultSheet = "廠商"

type fakeBanks struct {
	mu    sync.Mutex
	terms []string
	banks []model.BankInfo
	err   error
}

func (f *fakeBanks) SearchBanks(_ context.Context, term string) ([]model.BankInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms = append(f.terms, term)
	return f.banks, f.err
}

func (f *fakeBanks) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.terms...)
}

type fakeAdder struct {
	got model.NewVendor
	err error
}

func (f *fakeAdder) AddVendor(_ context.Context, v model.NewVendor) (sheets.Status, error) {
	f.got = v
	return sheets.Status{Status: "ok"}, f.err
}

func TestSetBankInputDebounces(t *testing.T) {
	banks := &fakeBanks{banks: []model.BankInfo{{FullName: "First Bank Taipei", FullCode: "0071234"}}}
	f := New(defaultSheet, banks, 20*time.Millisecond, nil)
	defer f.Close()

	f.ApplySuggestion(model.BankInfo{FullName: "Old", FullCode: "999"})
	f.SetBankInput("Fi")
	f.SetBankInput("Fir")
	f.SetBankInput("First")

	assert.Empty(t, f.Data().BankCode)
	assert.Equal(t, "First", f.Data().Bank)

	assert.Eventually(t, func() bool { return len(f.Suggestions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"First"}, banks.calls())
	assert.False(t, f.SearchingBank())
}

func TestSetBankInputShortClears(t *testing.T) {
	banks := &fakeBanks{banks: []model.BankInfo{{FullName: "X", FullCode: "1"}}}
	f := New(defaultSheet, banks, 10*time.Millisecond, nil)

	f.LookupBanks(context.Background(), "First")
	require.Len(t, f.Suggestions(), 1)

	f.SetBankInput("F")
	assert.Empty(t, f.Suggestions())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []string{"First"}, banks.calls())
}

func TestLookupBanksFailureIsSilent(t *testing.T) {
	f := New(defaultSheet, &fakeBanks{err: errors.New("boom")}, time.Millisecond, nil)
	got := f.LookupBanks(context.Background(), "First")
	assert.Empty(t, got)
	assert.Empty(t, f.Suggestions())
	assert.False(t, f.SearchingBank())
}

func TestApplySuggestion(t *testing.T) {
	f := New(defaultSheet, &fakeBanks{banks: []model.BankInfo{{FullName: "A", FullCode: "1"}}}, time.Millisecond, nil)
	f.LookupBanks(context.Background(), "AB")

	f.ApplySuggestion(model.BankInfo{FullName: "First Bank Taipei", FullCode: "0071234"})
	d := f.Data()
	assert.Equal(t, "First Bank Taipei", d.Bank)
	assert.Equal(t, "0071234", d.BankCode)
	assert.Empty(t, f.Suggestions())
}

func TestSetSheetClearsTaxID(t *testing.T) {
	f := New(defaultSheet, &fakeBanks{}, time.Millisecond, nil)
	f.Set(model.NewVendor{Name: "Acme", TaxID: "12345678"})
	assert.Equal(t, defaultSheet, f.Data().SheetName)
	assert.Equal(t, "12345678", f.Data().TaxID)

	f.SetSheet("個人")
	assert.Empty(t, f.Data().TaxID)
}

func TestMerge(t *testing.T) {
	existing := model.NewVendor{Name: "Old", Bank: "Old Bank", BankCode: "111", AccountNumber: "A-1", TaxID: "87654321", Remarks: "keep", SheetName: defaultSheet}
	parsed := model.ParsedVendor{Name: "Acme", Bank: "", BankCode: "0071234", AccountNumber: "", TaxID: "12345678"}

	got := Merge(existing, parsed, true)
	assert.Equal(t, "Acme", got.Name)
	assert.Equal(t, "Old Bank", got.Bank)
	assert.Equal(t, "0071234", got.BankCode)
	assert.Equal(t, "A-1", got.AccountNumber)
	assert.Equal(t, "12345678", got.TaxID)
	assert.Equal(t, "keep", got.Remarks)
	assert.Equal(t, defaultSheet, got.SheetName)

	got = Merge(existing, parsed, false)
	assert.Empty(t, got.TaxID)
}

func TestApplyParsedSchedulesBankLookup(t *testing.T) {
	banks := &fakeBanks{}
	f := New(defaultSheet, banks, 5*time.Millisecond, nil)
	defer f.Close()

	f.ApplyParsed(model.ParsedVendor{Name: "Acme", Bank: "First Bank"})
	assert.Equal(t, "Acme", f.Data().Name)
	assert.Eventually(t, func() bool { return len(banks.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "First Bank", banks.calls()[0])
}

func TestSubmit(t *testing.T) {
	f := New(defaultSheet, &fakeBanks{}, time.Millisecond, nil)
	adder := &fakeAdder{}

	_, err := f.Submit(context.Background(), adder)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"name", "bank", "bankCode", "accountNumber"}, ve.Missing)

	f.Set(model.NewVendor{Name: "Acme", AccountNumber: "12-345", TaxID: "12345678"})
	f.ApplySuggestion(model.BankInfo{FullName: "First Bank Taipei", FullCode: "0071234"})
	sent, err := f.Submit(context.Background(), adder)
	require.NoError(t, err)
	assert.Equal(t, "12345678", sent.TaxID)
	assert.Equal(t, sent, adder.got)
}

func TestSubmitError(t *testing.T) {
	f := New(defaultSheet, &fakeBanks{}, time.Millisecond, nil)
	f.Set(model.NewVendor{Name: "Acme", AccountNumber: "1", SheetName: "個人"})
	f.ApplySuggestion(model.BankInfo{FullName: "B", FullCode: "1"})

	_, err := f.Submit(context.Background(), &fakeAdder{err: &sheets.RemoteError{Message: "duplicate vendor"}})
	require.Error(t, err)
	assert.Equal(t, "adding vendor failed: duplicate vendor", err.Error())
}
