// Package parser extracts vendor fields from pasted free text with a
// generative model. The capability is optional: without an API key every
// parse returns nothing.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/metrics"
	"github.com/paydesk/remitsheet/internal/model"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const systemInstruction = "Parse the text which contains vendor information into a JSON object. " +
	"Extract the company name, bank name with branch, bank code, account number, and if available, " +
	"also extract the Tax ID (統一編號), address, and any remarks."

// Backend produces the raw JSON answer for a prompt.
type Backend interface {
	Generate(ctx context.Context, model, text string) (string, error)
}

// Capability is the parser as handed to callers. The zero value is an
// unavailable capability.
type Capability struct {
	backend Backend
	model   string
	log     *zap.Logger
	metrics *metrics.Metrics
}

// Init builds the capability. It is unavailable when apiKey is blank or the
// client cannot be constructed; the reason is logged.
func Init(ctx context.Context, apiKey, modelName string, log *zap.Logger) Capability {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("parser")
	if strings.TrimSpace(apiKey) == "" {
		log.Info("no API key configured, free-text parsing disabled")
		return Capability{log: log}
	}
	b, err := newGeminiBackend(ctx, apiKey)
	if err != nil {
		log.Warn("creating model client, free-text parsing disabled", zap.Error(err))
		return Capability{log: log}
	}
	return New(b, modelName, log)
}

// New builds an available capability over b.
func New(b Backend, modelName string, log *zap.Logger) Capability {
	if modelName == "" {
		modelName = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return Capability{backend: b, model: modelName, log: log}
}

// WithMetrics returns a copy of c that records parse outcomes on m.
func (c Capability) WithMetrics(m *metrics.Metrics) Capability {
	c.metrics = m
	return c
}

// Available reports whether Parse can reach a model.
func (c Capability) Available() bool {
	return c.backend != nil
}

// Parse extracts vendor fields from text. It returns nil, nil when the
// capability is unavailable, the text is blank, or the model call fails.
// An answer that is not the expected JSON object is an error.
func (c Capability) Parse(ctx context.Context, text string) (*model.ParsedVendor, error) {
	if !c.Available() || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	raw, err := c.backend.Generate(ctx, c.model, text)
	if err != nil {
		c.log.Warn("vendor parse request failed", zap.Error(err))
		c.metrics.ObserveParse(metrics.OutcomeRemote)
		return nil, nil
	}

	var parsed model.ParsedVendor
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		c.metrics.ObserveParse(metrics.OutcomeError)
		return nil, fmt.Errorf("decoding parsed vendor: %w", err)
	}
	c.metrics.ObserveParse(metrics.OutcomeOK)
	return &parsed, nil
}
