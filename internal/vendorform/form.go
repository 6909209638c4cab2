// Package vendorform holds the state of a vendor being created: field
// values, bank suggestions and the parsed-text merge.
package vendorform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/debounce"
	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/sheets"
)

// MinBankTerm is the shortest bank input that triggers a suggestion lookup.
const MinBankTerm = 2

// BankSearcher looks up bank and branch suggestions.
type BankSearcher interface {
	SearchBanks(ctx context.Context, term string) ([]model.BankInfo, error)
}

// Adder creates vendors in the directory.
type Adder interface {
	AddVendor(ctx context.Context, v model.NewVendor) (sheets.Status, error)
}

// ValidationError lists required fields left blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fill in vendor name, bank name, bank code and account number (missing: %s)", strings.Join(e.Missing, ", "))
}

// Form is a vendor being filled in. It is safe for concurrent use; bank
// lookups complete on the debouncer's goroutine.
type Form struct {
	defaultSheet string
	banks        BankSearcher
	debouncer    *debounce.Debouncer
	log          *zap.Logger

	mu            sync.Mutex
	data          model.NewVendor
	suggestions   []model.BankInfo
	searchingBank bool
	bankSeq       uint64
}

// New creates an empty form whose sheet is defaultSheet.
func New(defaultSheet string, banks BankSearcher, delay time.Duration, log *zap.Logger) *Form {
	if log == nil {
		log = zap.NewNop()
	}
	return &Form{
		defaultSheet: defaultSheet,
		banks:        banks,
		debouncer:    debounce.New(delay),
		log:          log.Named("vendorform"),
		data:         model.NewVendor{SheetName: defaultSheet},
	}
}

// Data returns the current field values.
func (f *Form) Data() model.NewVendor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

// Suggestions returns the current bank suggestions.
func (f *Form) Suggestions() []model.BankInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BankInfo(nil), f.suggestions...)
}

// SearchingBank reports whether a bank lookup is running.
func (f *Form) SearchingBank() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchingBank
}

// Set assigns the plain text fields of v. Bank fields go through
// SetBankInput and ApplySuggestion instead.
func (f *Form) Set(v model.NewVendor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.Name = v.Name
	f.data.AccountNumber = v.AccountNumber
	f.data.TaxID = v.TaxID
	f.data.Address = v.Address
	f.data.Remarks = v.Remarks
	f.setSheetLocked(v.SheetName)
}

// SetSheet selects the sheet the vendor goes to. The tax ID only applies to
// the default sheet and is cleared for any other.
func (f *Form) SetSheet(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setSheetLocked(name)
}

func (f *Form) setSheetLocked(name string) {
	if name == "" {
		name = f.defaultSheet
	}
	f.data.SheetName = name
	if name != f.defaultSheet {
		f.data.TaxID = ""
	}
}

// SetBankInput records typed bank text, clears the bank code and schedules a
// debounced suggestion lookup.
func (f *Form) SetBankInput(text string) {
	f.mu.Lock()
	f.data.Bank = text
	f.data.BankCode = ""
	f.mu.Unlock()
	f.scheduleBankLookup(text)
}

func (f *Form) scheduleBankLookup(term string) {
	if utf8.RuneCountInString(strings.TrimSpace(term)) < MinBankTerm {
		f.debouncer.Cancel()
		f.mu.Lock()
		f.bankSeq++
		f.suggestions = nil
		f.searchingBank = false
		f.mu.Unlock()
		return
	}
	f.debouncer.Trigger(func() {
		f.LookupBanks(context.Background(), term)
	})
}

// LookupBanks runs a suggestion lookup now, replacing any pending one.
// Failures leave the suggestions empty and are only logged.
func (f *Form) LookupBanks(ctx context.Context, term string) []model.BankInfo {
	f.debouncer.Cancel()
	f.mu.Lock()
	f.bankSeq++
	seq := f.bankSeq
	f.searchingBank = true
	f.mu.Unlock()

	banks, err := f.banks.SearchBanks(ctx, term)

	f.mu.Lock()
	defer f.mu.Unlock()
	if seq != f.bankSeq {
		return append([]model.BankInfo(nil), f.suggestions...)
	}
	f.searchingBank = false
	if err != nil {
		f.log.Warn("bank suggestion lookup failed", zap.String("term", term), zap.Error(err))
		f.suggestions = nil
		return nil
	}
	f.suggestions = banks
	return append([]model.BankInfo(nil), banks...)
}

// ApplySuggestion fills the bank name and code from a suggestion.
func (f *Form) ApplySuggestion(b model.BankInfo) {
	f.debouncer.Cancel()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bankSeq++
	f.data.Bank = b.FullName
	f.data.BankCode = b.FullCode
	f.suggestions = nil
	f.searchingBank = false
}

// ApplyParsed merges parsed fields over the form and, when a bank was
// parsed, schedules a suggestion lookup for it.
func (f *Form) ApplyParsed(p model.ParsedVendor) {
	f.mu.Lock()
	f.data = Merge(f.data, p, f.data.SheetName == f.defaultSheet)
	f.mu.Unlock()
	if p.Bank != "" {
		f.scheduleBankLookup(p.Bank)
	}
}

// Merge overlays the non-empty parsed fields on existing. The tax ID is
// cleared unless the vendor goes to the default sheet.
func Merge(existing model.NewVendor, p model.ParsedVendor, sheetIsDefault bool) model.NewVendor {
	out := existing
	out.Name = prefer(p.Name, existing.Name)
	out.Bank = prefer(p.Bank, existing.Bank)
	out.BankCode = prefer(p.BankCode, existing.BankCode)
	out.AccountNumber = prefer(p.AccountNumber, existing.AccountNumber)
	out.Address = prefer(p.Address, existing.Address)
	out.Remarks = prefer(p.Remarks, existing.Remarks)
	if sheetIsDefault {
		out.TaxID = prefer(p.TaxID, existing.TaxID)
	} else {
		out.TaxID = ""
	}
	return out
}

func prefer(incoming, current string) string {
	if incoming != "" {
		return incoming
	}
	return current
}

// Validate checks the required fields.
func (f *Form) Validate() error {
	if missing := f.Data().MissingRequired(); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Submit validates the form and creates the vendor. It returns the vendor
// as sent.
func (f *Form) Submit(ctx context.Context, adder Adder) (model.NewVendor, error) {
	if err := f.Validate(); err != nil {
		return model.NewVendor{}, err
	}
	f.debouncer.Cancel()

	v := f.Data()
	if v.SheetName != f.defaultSheet {
		v.TaxID = ""
	}
	if _, err := adder.AddVendor(ctx, v); err != nil {
		return model.NewVendor{}, fmt.Errorf("adding vendor failed: %w", err)
	}
	return v, nil
}

// Close drops any pending bank lookup.
func (f *Form) Close() {
	f.debouncer.Cancel()
}
