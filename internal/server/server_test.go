package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/remitsheet/internal/artifact"
	"github.com/paydesk/remitsheet/internal/batch"
	"github.com/paydesk/remitsheet/internal/history"
	"github.com/paydesk/remitsheet/internal/metrics"
	"github.com/paydesk/remitsheet/internal/parser"
	"github.com/paydesk/remitsheet/internal/search"
	"github.com/paydesk/remitsheet/internal/session"
	"github.com/paydesk/remitsheet/internal/sheets"
)

// fakeScript answers the spreadsheet script actions and serves the
// generated workbook.
type fakeScript struct {
	mu       sync.Mutex
	srv      *httptest.Server
	added    []json.RawMessage
	genItems json.RawMessage
	genError string
}

func newFakeScript(t *testing.T) *fakeScript {
	f := &fakeScript{}
	f.srv = httptest.NewTLSServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeScript) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/files/out.xlsx" {
		w.Write([]byte("PK-generated"))
		return
	}
	var req struct {
		Action  string                     `json:"action"`
		Payload map[string]json.RawMessage `json:"payload"`
	}
	body, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch req.Action {
	case "search":
		fmt.Fprint(w, `{"success":true,"data":[{"id":"V1","name":"Acme","bank":"First Bank","bankCode":"0071234","accountNumber":"111"},{"id":"V2","name":"Beta","bank":"Land Bank","bankCode":"0050001","accountNumber":"222"}]}`)
	case "searchBank":
		fmt.Fprint(w, `{"success":true,"data":[{"fullName":"First Bank Taipei","fullCode":"0071234"}]}`)
	case "add":
		f.added = append(f.added, req.Payload["vendorData"])
		fmt.Fprint(w, `{"success":true,"data":{"status":"added"}}`)
	case "updateMainData":
		f.genItems = req.Payload["items"]
		if f.genError != "" {
			fmt.Fprintf(w, `{"success":false,"error":%q}`, f.genError)
			return
		}
		fmt.Fprintf(w, `{"success":true,"data":{"status":"ok","downloadUrl":"%s/files/out.xlsx"}}`, f.srv.URL)
	default:
		fmt.Fprint(w, `{"success":false,"error":"unknown action"}`)
	}
}

func (f *fakeScript) failGeneration(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genError = msg
}

func (f *fakeScript) generated() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genItems
}

func (f *fakeScript) addedVendors() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.added...)
}

type fakeBackend struct{ answer string }

func (b fakeBackend) Generate(context.Context, string, string) (string, error) {
	return b.answer, nil
}

type env struct {
	script  *fakeScript
	engine  *batch.Engine
	handler http.Handler
	dir     string
}

func newEnv(t *testing.T, capability parser.Capability) *env {
	t.Helper()
	script := newFakeScript(t)
	dir := t.TempDir()
	m := metrics.New()
	client := sheets.New(sheets.Options{ScriptURL: script.srv.URL, HTTPClient: script.srv.Client(), Metrics: m})

	engine := batch.New(nil, batch.Options{
		Store:      session.NewFileStore(dir),
		Key:        session.Key("test", session.BatchKey),
		Generator:  client,
		Downloader: client,
		Sink:       artifact.Dir{Path: dir},
		Now:        func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.Local) },
		Metrics:    m,
	})
	srv := New(Deps{
		Engine:       engine,
		Searcher:     search.New(client, 2, nil),
		Directory:    client,
		Parser:       capability,
		History:      history.Recorder{StateDir: dir, SessionID: "test"},
		DefaultSheet: "廠商",
		SheetOptions: []string{"廠商", "個人"},
		Metrics:      m,
	})
	return &env{script: script, engine: engine, handler: srv.Handler(), dir: dir}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSearchAndAddToBatch(t *testing.T) {
	e := newEnv(t, parser.Capability{})

	rec := e.do(t, http.MethodGet, "/api/vendors?q=ac", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[search.State](t, rec)
	assert.Len(t, st.Results, 2)

	rec = e.do(t, http.MethodGet, "/api/vendors?q=a", "")
	assert.Empty(t, decodeBody[search.State](t, rec).Results)

	e.do(t, http.MethodGet, "/api/vendors?q=ac", "")
	rec = e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	snap := decodeBody[batch.Snapshot](t, rec)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Acme", snap.Items[0].Name)

	rec = e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[batch.Snapshot](t, rec).Items, 1)

	rec = e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V9"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRemoveAndReload(t *testing.T) {
	e := newEnv(t, parser.Capability{})
	e.do(t, http.MethodGet, "/api/vendors?q=ac", "")
	e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V1"}`)

	rec := e.do(t, http.MethodPatch, "/api/batch/items/V1", `{"amountPayable":"1000","manualFee":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody[batch.Snapshot](t, rec)
	assert.Equal(t, int64(980), snap.Items[0].ActualAmount)
	assert.Equal(t, int64(980), snap.Totals.Actual)

	rec = e.do(t, http.MethodPatch, "/api/batch/items/V1", `{"feeReason":"cash"}`)
	snap = decodeBody[batch.Snapshot](t, rec)
	assert.Equal(t, int64(0), snap.Items[0].ManualFee)
	assert.Equal(t, int64(1000), snap.Items[0].ActualAmount)

	rec = e.do(t, http.MethodPatch, "/api/batch/items/V1", `{"feeReason":"card"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPatch, "/api/batch/items/V7", `{"amountPayable":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/batch", "")
	assert.Len(t, decodeBody[batch.Snapshot](t, rec).Items, 1)

	rec = e.do(t, http.MethodGet, "/api/batch?navigation=reload", "")
	assert.Empty(t, decodeBody[batch.Snapshot](t, rec).Items)

	e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V2"}`)
	rec = e.do(t, http.MethodDelete, "/api/batch/items/V2", "")
	assert.Empty(t, decodeBody[batch.Snapshot](t, rec).Items)
}

func TestGenerate(t *testing.T) {
	e := newEnv(t, parser.Capability{})

	rec := e.do(t, http.MethodPost, "/api/batch/generate", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	e.do(t, http.MethodGet, "/api/vendors?q=ac", "")
	e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V1"}`)
	e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V2"}`)

	rec = e.do(t, http.MethodPost, "/api/batch/generate", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no eligible line items")

	e.do(t, http.MethodPatch, "/api/batch/items/V1", `{"amountPayable":"1000","manualFee":"20"}`)
	rec = e.do(t, http.MethodPost, "/api/batch/generate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sent []map[string]any
	require.NoError(t, json.Unmarshal(e.script.generated(), &sent))
	require.Len(t, sent, 1)
	assert.Equal(t, "V1", sent[0]["id"])
	assert.EqualValues(t, 980, sent[0]["actualAmount"])

	rec = e.do(t, http.MethodGet, "/api/batch/artifact", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PK-generated", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "20240305")

	entries, err := history.Read(e.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(980), entries[0].TotalActual)
	assert.Equal(t, "test", entries[0].SessionID)
}

func TestGenerateMissingRow(t *testing.T) {
	e := newEnv(t, parser.Capability{})
	e.script.failGeneration("Exception: 'Acme' row not found in Column B")
	e.do(t, http.MethodGet, "/api/vendors?q=ac", "")
	e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V1"}`)
	e.do(t, http.MethodPatch, "/api/batch/items/V1", `{"amountPayable":"10"}`)

	rec := e.do(t, http.MethodPost, "/api/batch/generate", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme")

	rec = e.do(t, http.MethodGet, "/api/batch/artifact", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddVendor(t *testing.T) {
	e := newEnv(t, parser.Capability{})

	rec := e.do(t, http.MethodPost, "/api/vendors", `{"name":"Acme"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/vendors", `{"name":"Acme","bank":"First Bank Taipei","bankCode":"0071234","accountNumber":"111","sheetName":"個人","taxId":"12345678"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	added := e.script.addedVendors()
	require.Len(t, added, 1)
	var sent map[string]string
	require.NoError(t, json.Unmarshal(added[0], &sent))
	assert.Equal(t, "個人", sent["sheetName"])
	assert.Empty(t, sent["taxId"])

	resp := decodeBody[struct {
		Search search.State `json:"search"`
	}](t, rec)
	assert.Equal(t, "Acme", resp.Search.Term)
	assert.NotEmpty(t, resp.Search.Results)
}

func TestBanks(t *testing.T) {
	e := newEnv(t, parser.Capability{})

	rec := e.do(t, http.MethodGet, "/api/banks?q=F", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/banks?q=First", "")
	assert.JSONEq(t, `[{"fullName":"First Bank Taipei","fullCode":"0071234"}]`, rec.Body.String())
}

func TestParseVendor(t *testing.T) {
	e := newEnv(t, parser.Capability{})
	rec := e.do(t, http.MethodPost, "/api/vendors/parse", `{"text":"Acme"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	capability := parser.New(fakeBackend{answer: `{"name":"Acme Ltd","bank":"First Bank","bankCode":"","accountNumber":"12-345","taxId":"12345678"}`}, "", nil)
	e = newEnv(t, capability)
	rec = e.do(t, http.MethodPost, "/api/vendors/parse", `{"text":"Acme Ltd ...","vendor":{"bankCode":"0071234","remarks":"keep"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[struct {
		Vendor          map[string]string   `json:"vendor"`
		BankSuggestions []map[string]string `json:"bankSuggestions"`
	}](t, rec)
	assert.Equal(t, "Acme Ltd", resp.Vendor["name"])
	assert.Equal(t, "0071234", resp.Vendor["bankCode"])
	assert.Equal(t, "keep", resp.Vendor["remarks"])
	assert.Equal(t, "12345678", resp.Vendor["taxId"])
	assert.Equal(t, "廠商", resp.Vendor["sheetName"])
	assert.Len(t, resp.BankSuggestions, 1)
}

func TestExportAndMetrics(t *testing.T) {
	e := newEnv(t, parser.Capability{})
	e.do(t, http.MethodGet, "/api/vendors?q=ac", "")
	e.do(t, http.MethodPost, "/api/batch/items", `{"id":"V1"}`)

	rec := e.do(t, http.MethodGet, "/api/batch/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sheets, err := artifact.Inspect(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, sheets[0].Rows)

	rec = e.do(t, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), `remitsheet_remote_calls_total{action="search",outcome="ok"} 1`)
}
