// Package history keeps an append-only CSV record of generated remittances.
package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one generated remittance.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Items       int       `json:"items"`
	TotalActual int64     `json:"totalActual"`
	FileName    string    `json:"fileName"`
	DownloadURL string    `json:"downloadUrl"`
}

// Header is the CSV header for generations.csv.
const Header = "timestamp,generation_id,session_id,items,total_actual,file_name,download_url"

const (
	numFields      = 7
	historyDir     = "history"
	historyFile    = "history/generations.csv"
	colTimestamp   = 0
	colID          = 1
	colSessionID   = 2
	colItems       = 3
	colTotalActual = 4
	colFileName    = 5
	colURL         = 6
)

// NewID returns a fresh generation ID.
func NewID() string {
	return uuid.NewString()
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colID] = e.ID
	row[colSessionID] = e.SessionID
	row[colItems] = strconv.Itoa(e.Items)
	row[colTotalActual] = strconv.FormatInt(e.TotalActual, 10)
	row[colFileName] = e.FileName
	row[colURL] = e.DownloadURL
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	items, err := strconv.Atoi(record[colItems])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing items %q: %w", record[colItems], err)
	}
	total, err := strconv.ParseInt(record[colTotalActual], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing total %q: %w", record[colTotalActual], err)
	}

	return Entry{
		Timestamp:   ts,
		ID:          record[colID],
		SessionID:   record[colSessionID],
		Items:       items,
		TotalActual: total,
		FileName:    record[colFileName],
		DownloadURL: record[colURL],
	}, nil
}

// Append writes entries to <stateDir>/history/generations.csv, creating the
// file and header if needed. Entries without an ID get one.
func Append(stateDir string, entries ...Entry) error {
	dir := filepath.Join(stateDir, historyDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	path := filepath.Join(stateDir, historyFile)
	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if e.ID == "" {
			e.ID = NewID()
		}
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries, oldest first. A missing file yields no entries.
func Read(stateDir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(stateDir, historyFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading history CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Recorder appends entries for one session.
type Recorder struct {
	StateDir  string
	SessionID string
	Now       func() time.Time
}

// Record fills in the timestamp, ID and session of e and appends it.
func (r Recorder) Record(e Entry) (Entry, error) {
	if e.Timestamp.IsZero() {
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		e.Timestamp = now()
	}
	if e.ID == "" {
		e.ID = NewID()
	}
	e.SessionID = r.SessionID
	if err := Append(r.StateDir, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
