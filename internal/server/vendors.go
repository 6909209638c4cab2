package server

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/paydesk/remitsheet/internal/model"
	"github.com/paydesk/remitsheet/internal/vendorform"
)

func (s *Server) handleSearchVendors(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Searcher.Search(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSearchBanks(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	banks := []model.BankInfo{}
	if utf8.RuneCountInString(strings.TrimSpace(term)) < vendorform.MinBankTerm {
		writeJSON(w, http.StatusOK, banks)
		return
	}
	found, err := s.deps.Directory.SearchBanks(r.Context(), term)
	if err != nil {
		s.log.Warn("bank suggestion lookup failed", zap.String("term", term), zap.Error(err))
	} else if found != nil {
		banks = found
	}
	writeJSON(w, http.StatusOK, banks)
}

func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": s.deps.DefaultSheet,
		"options": s.deps.SheetOptions,
	})
}

func (s *Server) handleAddVendor(w http.ResponseWriter, r *http.Request) {
	var v model.NewVendor
	if err := decode(w, r, &v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid vendor: "+err.Error())
		return
	}

	form := vendorform.New(s.deps.DefaultSheet, s.deps.Directory, 0, s.deps.Logger)
	defer form.Close()
	form.Set(v)
	form.ApplySuggestion(model.BankInfo{FullName: v.Bank, FullCode: v.BankCode})

	sent, err := form.Submit(r.Context(), s.deps.Directory)
	if err != nil {
		var ve *vendorform.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	// Show the new vendor the way a search for it would.
	st := s.deps.Searcher.Search(r.Context(), sent.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"vendor": sent,
		"search": st,
	})
}

type parseRequest struct {
	Text   string          `json:"text"`
	Vendor model.NewVendor `json:"vendor"`
}

func (s *Server) handleParseVendor(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Parser.Available() {
		writeError(w, http.StatusServiceUnavailable, "free-text parsing is not configured: set GEMINI_API_KEY")
		return
	}
	var req parseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "paste the vendor details to parse")
		return
	}

	parsed, err := s.deps.Parser.Parse(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, "parsing failed: "+err.Error())
		return
	}
	if parsed == nil {
		writeError(w, http.StatusUnprocessableEntity, "no vendor details could be parsed from the text")
		return
	}

	sheet := req.Vendor.SheetName
	if sheet == "" {
		sheet = s.deps.DefaultSheet
		req.Vendor.SheetName = sheet
	}
	merged := vendorform.Merge(req.Vendor, *parsed, sheet == s.deps.DefaultSheet)

	resp := map[string]any{"vendor": merged}
	if parsed.Bank != "" {
		form := vendorform.New(s.deps.DefaultSheet, s.deps.Directory, 0, s.deps.Logger)
		resp["bankSuggestions"] = form.LookupBanks(r.Context(), parsed.Bank)
	}
	writeJSON(w, http.StatusOK, resp)
}
