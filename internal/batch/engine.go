// Package batch owns the transfer batch: the staged vendors, their amounts
// and fees, the derived actual amounts, and remittance generation.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/artifact"
	"github.com/paydesk/remitsheet/internal/metrics"
	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/money"
	"github.com/paydesk/remitsheet/internal/session"
	"github.com/paydesk/remitsheet/internal/sheets"
)

// Options wires an Engine to its collaborators.
type Options struct {
	Store      session.Store // nil keeps the batch in memory only
	Key        string        // store key, see session.Key
	Generator  Generator
	Downloader Downloader
	Sink       Sink
	FileSuffix string
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Artifact is the last successfully generated workbook.
type Artifact struct {
	URL         string       `json:"url"`
	FileName    string       `json:"fileName"`
	Path        string       `json:"path"`
	Size        int          `json:"size"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Items       int          `json:"items"`
	Totals      model.Totals `json:"totals"`
}

// Snapshot is a consistent view of the engine.
type Snapshot struct {
	Items      []model.TransferItem `json:"items"`
	Totals     model.Totals         `json:"totals"`
	Generating bool                 `json:"generating"`
	Error      string               `json:"error,omitempty"`
	Artifact   *Artifact            `json:"artifact,omitempty"`
}

// Engine holds the batch. All methods are safe for concurrent use.
type Engine struct {
	opts Options
	log  *zap.Logger

	mu         sync.Mutex
	items      []model.TransferItem
	rev        uint64 // bumped by every change that invalidates a generation
	generating bool
	lastErr    string
	artifact   *Artifact
}

// New creates an Engine over items.
func New(items []model.TransferItem, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Key == "" {
		opts.Key = session.BatchKey
	}
	return &Engine{
		opts:  opts,
		log:   opts.Logger.Named("batch"),
		items: append([]model.TransferItem(nil), items...),
	}
}

// Open restores the batch from opts.Store and creates an Engine over it.
// Unreadable stored content starts an empty batch.
func Open(ctx context.Context, opts Options, nav session.Navigation) (*Engine, error) {
	e := New(nil, opts)
	if opts.Store == nil {
		return e, nil
	}
	items, err := session.Restore(ctx, opts.Store, e.opts.Key, nav)
	if err != nil {
		if !errors.Is(err, session.ErrCorrupt) {
			return nil, err
		}
		e.log.Warn("discarding unreadable stored batch", zap.Error(err))
	}
	e.items = items
	return e, nil
}

// Reset empties the batch and discards its stored copy, as a hard reload
// does.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = nil
	e.rev++
	e.artifact = nil
	e.lastErr = ""
	if e.opts.Store == nil {
		return nil
	}
	if _, err := session.Restore(ctx, e.opts.Store, e.opts.Key, session.Reload); err != nil {
		return err
	}
	return nil
}

// Items returns a copy of the batch.
func (e *Engine) Items() []model.TransferItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.TransferItem(nil), e.items...)
}

// Totals sums the batch.
func (e *Engine) Totals() model.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.Sum(e.items)
}

// Snapshot returns the batch together with the generation state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	var a *Artifact
	if e.artifact != nil {
		cp := *e.artifact
		a = &cp
	}
	return Snapshot{
		Items:      append([]model.TransferItem(nil), e.items...),
		Totals:     model.Sum(e.items),
		Generating: e.generating,
		Error:      e.lastErr,
		Artifact:   a,
	}
}

// Contains reports whether a vendor is in the batch.
func (e *Engine) Contains(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.indexLocked(id) >= 0
}

// Add appends v with zeroed amounts unless it is already staged. It reports
// whether the batch changed.
func (e *Engine) Add(ctx context.Context, v model.Vendor) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexLocked(v.ID) >= 0 {
		return false
	}
	next := make([]model.TransferItem, 0, len(e.items)+1)
	next = append(next, e.items...)
	next = append(next, model.NewTransferItem(v))
	e.commitLocked(ctx, next, true)
	return true
}

// Remove drops the item with id. Unknown ids are ignored. The last
// generated artifact and error are kept.
func (e *Engine) Remove(ctx context.Context, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return
	}
	next := make([]model.TransferItem, 0, len(e.items)-1)
	next = append(next, e.items[:i]...)
	next = append(next, e.items[i+1:]...)
	e.commitLocked(ctx, next, false)
}

// SetAmountPayable parses raw as the payable amount of item id.
func (e *Engine) SetAmountPayable(ctx context.Context, id, raw string) {
	amount := money.ParseInput(raw)
	e.update(ctx, id, func(it model.TransferItem) model.TransferItem {
		it.AmountPayable = amount
		return it.Derive()
	})
}

// SetManualFee parses raw as the fee of item id. A positive fee clears the
// fee reason.
func (e *Engine) SetManualFee(ctx context.Context, id, raw string) {
	fee := money.ParseInput(raw)
	e.update(ctx, id, func(it model.TransferItem) model.TransferItem {
		it.ManualFee = fee
		if fee > 0 {
			it.FeeReason = model.FeeReasonUnset
		}
		it.ActualAmount = it.AmountPayable - it.ManualFee
		return it
	})
}

// SetFeeReason sets the fee reason of item id, zeroing its fee.
func (e *Engine) SetFeeReason(ctx context.Context, id string, reason model.FeeReason) error {
	switch reason {
	case model.FeeReasonUnset, model.FeeReasonCash, model.FeeReasonWaived:
	default:
		return &ValidationError{Op: "set fee reason", Message: "unknown fee reason " + string(reason) + ": use unset, cash or waived"}
	}
	e.update(ctx, id, func(it model.TransferItem) model.TransferItem {
		it.FeeReason = reason
		it.ManualFee = 0
		it.ActualAmount = it.AmountPayable
		return it
	})
	return nil
}

func (e *Engine) update(ctx context.Context, id string, fn func(model.TransferItem) model.TransferItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return
	}
	next := append([]model.TransferItem(nil), e.items...)
	next[i] = fn(next[i])
	e.commitLocked(ctx, next, true)
}

// commitLocked installs next and persists the batch. When dirty is set the
// previous generation outcome is cleared. Store failures are logged; the
// batch stays usable.
func (e *Engine) commitLocked(ctx context.Context, next []model.TransferItem, dirty bool) {
	e.items = next
	if dirty {
		e.rev++
		e.artifact = nil
		e.lastErr = ""
	}
	if e.opts.Store == nil {
		return
	}
	data, err := session.Encode(next)
	if err != nil {
		e.log.Warn("encoding batch", zap.Error(err))
		return
	}
	if err := e.opts.Store.Save(ctx, e.opts.Key, data); err != nil {
		e.log.Warn("saving batch", zap.String("key", e.opts.Key), zap.Error(err))
	}
}

func (e *Engine) indexLocked(id string) int {
	for i, it := range e.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Generate submits the eligible items, downloads the resulting workbook and
// delivers it under today's file name. Failures are recorded for Snapshot
// and never touch the amounts. If the batch is edited or reset while the
// remote step runs, the outcome is returned but not recorded.
func (e *Engine) Generate(ctx context.Context) (*Artifact, error) {
	e.mu.Lock()
	if e.generating {
		e.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	e.artifact = nil
	e.lastErr = ""

	if len(e.items) == 0 {
		err := &ValidationError{Op: "generate", Message: msgEmptyBatch}
		e.failLocked(err)
		e.mu.Unlock()
		return nil, err
	}
	var eligible []model.TransferItem
	for _, it := range e.items {
		if it.Eligible() {
			eligible = append(eligible, it)
		}
	}
	if len(eligible) == 0 {
		err := &ValidationError{Op: "generate", Message: msgNoEligible}
		e.failLocked(err)
		e.mu.Unlock()
		return nil, err
	}
	e.generating = true
	rev := e.rev
	e.mu.Unlock()

	a, err := e.generate(ctx, eligible)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.generating = false
	stale := e.rev != rev
	if err != nil {
		e.observeFailure(err)
		if !stale {
			e.lastErr = Message(err)
		}
		return nil, err
	}
	e.opts.Metrics.ObserveGeneration(metrics.OutcomeOK)
	if stale {
		e.log.Info("batch changed during generation, not keeping artifact", zap.String("file", a.FileName))
	} else {
		e.artifact = a
	}
	e.log.Info("remittance generated",
		zap.String("file", a.FileName),
		zap.Int("items", a.Items),
		zap.Int64("total_actual", a.Totals.Actual))
	cp := *a
	return &cp, nil
}

func (e *Engine) generate(ctx context.Context, items []model.TransferItem) (*Artifact, error) {
	res, err := e.opts.Generator.UpdateMainData(ctx, items)
	if err != nil {
		return nil, err
	}
	data, err := e.opts.Downloader.Download(ctx, res.DownloadURL)
	if err != nil {
		return nil, err
	}
	now := e.opts.Now()
	name := artifact.FileName(now, e.opts.FileSuffix)
	path := ""
	if e.opts.Sink != nil {
		if path, err = e.opts.Sink.Deliver(name, data); err != nil {
			return nil, err
		}
	}
	return &Artifact{
		URL:         res.DownloadURL,
		FileName:    name,
		Path:        path,
		Size:        len(data),
		GeneratedAt: now,
		Items:       len(items),
		Totals:      model.Sum(items),
	}, nil
}

func (e *Engine) failLocked(err error) {
	e.lastErr = Message(err)
	e.observeFailure(err)
}

func (e *Engine) observeFailure(err error) {
	e.opts.Metrics.ObserveGeneration(outcome(err))
	e.log.Warn("generation failed", zap.Error(err))
}

func outcome(err error) string {
	var (
		ve        *ValidationError
		statusErr *sheets.StatusError
		remoteErr *sheets.RemoteError
	)
	switch {
	case errors.As(err, &ve):
		return metrics.OutcomeValidation
	case sheets.IsConnectivity(err):
		return metrics.OutcomeConnectivity
	case errors.As(err, &statusErr):
		return metrics.OutcomeStatus
	case errors.As(err, &remoteErr):
		return metrics.OutcomeRemote
	}
	return metrics.OutcomeError
}
