// Package search holds the vendor search state shared by the CLI and API.
package search

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/sheets"
)

// MinLength is the shortest term that reaches the directory.
const MinLength = 2

// ConnectivityMessage is shown when the directory cannot be reached.
const ConnectivityMessage = sheets.ConnectivityMessage

// Directory is the part of the sheets client searches need.
type Directory interface {
	Search(ctx context.Context, term string) ([]model.Vendor, error)
}

// State is a snapshot of a Searcher.
type State struct {
	Term     string         `json:"term"`
	Results  []model.Vendor `json:"results"`
	InFlight bool           `json:"inFlight"`
	Message  string         `json:"message,omitempty"`
}

// Searcher runs vendor searches and keeps the latest outcome. Results of a
// search are dropped when a newer search started after it.
type Searcher struct {
	dir       Directory
	minLength int
	log       *zap.Logger

	mu       sync.Mutex
	seq      uint64
	term     string
	results  []model.Vendor
	inFlight bool
	message  string
}

// New creates a Searcher. minLength <= 0 uses MinLength.
func New(dir Directory, minLength int, log *zap.Logger) *Searcher {
	if minLength <= 0 {
		minLength = MinLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Searcher{dir: dir, minLength: minLength, log: log.Named("search")}
}

// Search looks term up and returns the resulting state. Short terms clear
// the results without calling the directory.
func (s *Searcher) Search(ctx context.Context, term string) State {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.term = term
	s.results = nil
	s.message = ""
	if utf8.RuneCountInString(term) < s.minLength {
		s.inFlight = false
		st := s.stateLocked()
		s.mu.Unlock()
		return st
	}
	s.inFlight = true
	s.mu.Unlock()

	results, err := s.dir.Search(ctx, term)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		s.log.Debug("dropping stale search results", zap.String("term", term))
		return s.stateLocked()
	}
	s.inFlight = false
	if err != nil {
		s.log.Warn("vendor search failed", zap.String("term", term), zap.Error(err))
		s.message = Message(err)
		return s.stateLocked()
	}
	s.results = results
	return s.stateLocked()
}

// State returns the current snapshot.
func (s *Searcher) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Find returns a vendor from the latest results.
func (s *Searcher) Find(id string) (model.Vendor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.results {
		if v.ID == id {
			return v, true
		}
	}
	return model.Vendor{}, false
}

func (s *Searcher) stateLocked() State {
	return State{
		Term:     s.term,
		Results:  append([]model.Vendor(nil), s.results...),
		InFlight: s.inFlight,
		Message:  s.message,
	}
}

// Message turns a search error into text for the operator.
func Message(err error) string {
	if sheets.IsConnectivity(err) {
		return ConnectivityMessage
	}
	return "search failed: " + strings.TrimSpace(err.Error())
}
