package sheets

import (
	"context"
	"strings"

	"github.com/paydesk/remitsheet/internal/model"
)

// Status is the acknowledgement the script returns for writes.
type Status struct {
	Status string `json:"status"`
}

// GenerateResult is the script's answer to updateMainData.
type GenerateResult struct {
	Status      string `json:"status"`
	DownloadURL string `json:"downloadUrl"`
}

// Search looks vendors up by a free-text term.
func (c *Client) Search(ctx context.Context, term string) ([]model.Vendor, error) {
	var vendors []model.Vendor
	if err := c.call(ctx, actionSearch, map[string]string{"searchTerm": term}, &vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

// SearchBanks returns bank and branch suggestions for a term. Answers are
// cached per term for the configured TTL.
func (c *Client) SearchBanks(ctx context.Context, term string) ([]model.BankInfo, error) {
	key := strings.ToLower(strings.TrimSpace(term))
	if c.banks != nil {
		if cached, ok := c.banks.Get(key); ok {
			return cached.([]model.BankInfo), nil
		}
	}

	var banks []model.BankInfo
	if err := c.call(ctx, actionSearchBank, map[string]string{"searchTerm": term}, &banks); err != nil {
		return nil, err
	}
	if c.banks != nil {
		c.banks.SetDefault(key, banks)
	}
	return banks, nil
}

// AddVendor creates a vendor in the directory.
func (c *Client) AddVendor(ctx context.Context, v model.NewVendor) (Status, error) {
	var st Status
	if err := c.call(ctx, actionAdd, map[string]any{"vendorData": v}, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// UpdateMainData writes the batch into the backing sheet and asks the script
// to build the remittance workbook.
func (c *Client) UpdateMainData(ctx context.Context, items []model.TransferItem) (GenerateResult, error) {
	var res GenerateResult
	if err := c.call(ctx, actionUpdateMain, map[string]any{"items": items}, &res); err != nil {
		return GenerateResult{}, err
	}
	if strings.TrimSpace(res.DownloadURL) == "" {
		return GenerateResult{}, &RemoteError{Action: actionUpdateMain, Message: "the script returned no download link"}
	}
	return res, nil
}
