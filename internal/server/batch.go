package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/artifact"
	"github.com/paydesk/remitsheet/internal/batch"
	"github.com/paydesk/remitsheet/internal/history"
	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/session"
)

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	if session.ParseNavigation(r.URL.Query().Get("navigation")) == session.Reload {
		if err := s.deps.Engine.Reset(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Engine.Snapshot())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var v model.Vendor
	if err := decode(w, r, &v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid vendor: "+err.Error())
		return
	}
	if v.ID == "" {
		writeError(w, http.StatusBadRequest, "vendor id is required")
		return
	}
	if v.Name == "" {
		found, ok := s.deps.Searcher.Find(v.ID)
		if !ok {
			writeError(w, http.StatusNotFound, "vendor "+v.ID+" is not in the latest search results")
			return
		}
		v = found
	}

	status := http.StatusOK
	if s.deps.Engine.Add(r.Context(), v) {
		status = http.StatusCreated
	}
	writeJSON(w, status, s.deps.Engine.Snapshot())
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.deps.Engine.Remove(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, s.deps.Engine.Snapshot())
}

type itemUpdate struct {
	AmountPayable json.RawMessage `json:"amountPayable"`
	ManualFee     json.RawMessage `json:"manualFee"`
	FeeReason     *string         `json:"feeReason"`
}

// rawInput turns a JSON string or number into the text an operator would
// have typed.
func rawInput(m json.RawMessage) string {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(m, &n); err == nil {
		return n.String()
	}
	return ""
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var upd itemUpdate
	if err := decode(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update: "+err.Error())
		return
	}

	var reason model.FeeReason
	if upd.FeeReason != nil {
		var err error
		if reason, err = model.ParseFeeReason(*upd.FeeReason); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if !s.deps.Engine.Contains(id) {
		writeError(w, http.StatusNotFound, "vendor "+id+" is not in the batch")
		return
	}

	ctx := r.Context()
	if len(upd.AmountPayable) > 0 {
		s.deps.Engine.SetAmountPayable(ctx, id, rawInput(upd.AmountPayable))
	}
	if len(upd.ManualFee) > 0 {
		s.deps.Engine.SetManualFee(ctx, id, rawInput(upd.ManualFee))
	}
	if upd.FeeReason != nil {
		if err := s.deps.Engine.SetFeeReason(ctx, id, reason); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Engine.Snapshot())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Engine.Generate(r.Context())
	if err != nil {
		var ve *batch.ValidationError
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, batch.ErrGenerationInFlight):
			status = http.StatusConflict
		case errors.As(err, &ve):
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, batch.Message(err))
		return
	}

	if s.deps.History != nil {
		if _, err := s.deps.History.Record(history.Entry{
			Timestamp:   a.GeneratedAt,
			Items:       a.Items,
			TotalActual: a.Totals.Actual,
			FileName:    a.FileName,
			DownloadURL: a.URL,
		}); err != nil {
			s.log.Warn("recording generation", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifact": a,
		"batch":    s.deps.Engine.Snapshot(),
	})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	a := s.deps.Engine.Snapshot().Artifact
	if a == nil {
		writeError(w, http.StatusNotFound, "nothing has been generated yet")
		return
	}
	if a.Path == "" {
		http.Redirect(w, r, a.URL, http.StatusFound)
		return
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading artifact: "+err.Error())
		return
	}
	writeWorkbook(w, a.FileName, data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Engine.Snapshot()
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", `attachment; filename="batch-preview.xlsx"`)
	if err := artifact.Export(w, snap.Items, snap.Totals); err != nil {
		s.log.Warn("exporting batch", zap.Error(err))
	}
}

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func writeWorkbook(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
