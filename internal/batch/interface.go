package batch

import (
	"context"

	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/sheets"
)

// Generator submits eligible items and returns where the workbook landed.
//
//go:generate mockgen -source=interface.go -destination=mocks/mock_interface.go -package=mocks
type Generator interface {
	UpdateMainData(ctx context.Context, items []model.TransferItem) (sheets.GenerateResult, error)
}

// Downloader fetches the generated workbook.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Sink delivers the downloaded workbook under its final name and returns
// where it was put.
type Sink interface {
	Deliver(name string, data []byte) (string, error)
}
