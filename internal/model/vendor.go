package model

import "strings"

// Vendor is a directory record as returned by the remote vendor registry.
type Vendor struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Bank          string `json:"bank"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
	SheetName     string `json:"sheetName,omitempty"` // backing table the vendor lives in
	TaxID         string `json:"taxId,omitempty"`
	Address       string `json:"address,omitempty"`
	Remarks       string `json:"remarks,omitempty"`
}

// NewVendor is a vendor submitted for creation. The directory assigns the ID.
type NewVendor struct {
	Name          string `json:"name"`
	Bank          string `json:"bank"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
	SheetName     string `json:"sheetName"`
	TaxID         string `json:"taxId"`
	Address       string `json:"address"`
	Remarks       string `json:"remarks"`
}

// BankInfo is a bank or branch suggestion from the directory.
type BankInfo struct {
	FullName string `json:"fullName"`
	FullCode string `json:"fullCode"`
}

// ParsedVendor holds the fields extracted from free text. The first four are
// always present in a parsed result, possibly empty.
type ParsedVendor struct {
	Name          string `json:"name"`
	Bank          string `json:"bank"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
	TaxID         string `json:"taxId,omitempty"`
	Address       string `json:"address,omitempty"`
	Remarks       string `json:"remarks,omitempty"`
}

// MissingRequired returns the names of required fields that are blank.
func (v NewVendor) MissingRequired() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", v.Name},
		{"bank", v.Bank},
		{"bankCode", v.BankCode},
		{"accountNumber", v.AccountNumber},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
