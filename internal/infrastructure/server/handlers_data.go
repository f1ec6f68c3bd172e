package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.data.Account(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	if search == "" {
		search = "*"
	}
	names, err := s.data.Symbols(r.Context(), search)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, names)
}

func (s *Server) handleSymbolInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.data.Info(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleSymbolTick(w http.ResponseWriter, r *http.Request) {
	tick, err := s.data.Tick(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tick)
}

func (s *Server) handleFetchDataPos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		respondError(w, r, apperrors.Validation("Symbol parameter is required"))
		return
	}

	count := 0
	if raw := q.Get("num_bars"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, apperrors.Validation("Invalid num_bars format"))
			return
		}
		count = parsed
	}

	bars, err := s.data.BarsFromPos(r.Context(), symbol, q.Get("timeframe"), count)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bars)
}

// parseISOTime accepts ISO-8601 timestamps, tolerating a trailing Z the same
// way the rest of the API emits them. Naive timestamps are taken as UTC.
func parseISOTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (s *Server) handleFetchDataRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	startRaw := q.Get("start")
	endRaw := q.Get("end")
	if symbol == "" || startRaw == "" || endRaw == "" {
		respondError(w, r, apperrors.Validation("Symbol, start, and end parameters are required"))
		return
	}

	start, err := parseISOTime(startRaw)
	if err != nil {
		respondError(w, r, apperrors.Validationf("Invalid parameter format: %s", err))
		return
	}
	end, err := parseISOTime(endRaw)
	if err != nil {
		respondError(w, r, apperrors.Validationf("Invalid parameter format: %s", err))
		return
	}

	bars, err := s.data.BarsRange(r.Context(), symbol, q.Get("timeframe"), start, end)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bars)
}

func (s *Server) handleHistoryDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromRaw := q.Get("from_date")
	toRaw := q.Get("to_date")
	positionRaw := q.Get("position")
	if fromRaw == "" || toRaw == "" || positionRaw == "" {
		respondError(w, r, apperrors.Validation("from_date, to_date, and position parameters are required"))
		return
	}

	from, err := parseISOTime(fromRaw)
	if err != nil {
		respondError(w, r, apperrors.Validationf("Invalid parameter format: %s", err))
		return
	}
	to, err := parseISOTime(toRaw)
	if err != nil {
		respondError(w, r, apperrors.Validationf("Invalid parameter format: %s", err))
		return
	}
	position, err := strconv.ParseInt(positionRaw, 10, 64)
	if err != nil {
		respondError(w, r, apperrors.Validation("Invalid position format"))
		return
	}

	deals, err := s.data.HistoryDeals(r.Context(), from, to, position)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, deals)
}

func (s *Server) handleHistoryOrders(w http.ResponseWriter, r *http.Request) {
	ticket, err := ticketFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	orders, err := s.data.HistoryOrders(r.Context(), ticket)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleDealFromTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := ticketFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	deal, err := s.data.DealFromTicket(r.Context(), ticket)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

func (s *Server) handleOrderFromTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := ticketFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	order, err := s.data.OrderFromTicket(r.Context(), ticket)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
