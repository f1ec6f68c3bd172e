package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

type orderRequest struct {
	Symbol    string   `json:"symbol"`
	Type      string   `json:"type"`
	Volume    float64  `json:"volume"`
	Price     *float64 `json:"price"`
	SL        *float64 `json:"sl"`
	TP        *float64 `json:"tp"`
	Deviation int      `json:"deviation"`
	Magic     int64    `json:"magic"`
	Comment   string   `json:"comment"`
	Filling   *string  `json:"type_filling"`
}

// toIntent validates the request's shape and builds the pipeline input.
// Business-rule validation happens in the order service.
func (req *orderRequest) toIntent() (*core.OrderIntent, error) {
	if req.Symbol == "" || req.Type == "" || req.Volume == 0 {
		return nil, apperrors.Validation("Missing required fields").
			WithDetails(map[string]interface{}{"required": []string{"symbol", "volume", "type"}})
	}
	if req.Volume < 0 {
		return nil, apperrors.Validation("Volume must be positive")
	}
	kind, err := core.ParseOrderKind(req.Type)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	intent := &core.OrderIntent{
		Symbol:     req.Symbol,
		Kind:       kind,
		Volume:     req.Volume,
		StopLoss:   req.SL,
		TakeProfit: req.TP,
		Deviation:  req.Deviation,
		Magic:      req.Magic,
		Comment:    req.Comment,
	}
	if req.Price != nil {
		intent.Price = *req.Price
		intent.HasPrice = true
	}
	if req.Filling != nil {
		filling, err := parseFilling(*req.Filling)
		if err != nil {
			return nil, err
		}
		intent.Filling = &filling
	}
	return intent, nil
}

func parseFilling(s string) (core.FillingMode, error) {
	switch s {
	case "IOC":
		return core.FillingIOC, nil
	case "FOK":
		return core.FillingFOK, nil
	case "RETURN":
		return core.FillingReturn, nil
	default:
		return 0, apperrors.Validationf("Invalid filling mode: %q, expected IOC, FOK or RETURN", s)
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return apperrors.Validation("Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Validationf("Invalid JSON body: %s", err)
	}
	return nil
}

func ticketFromPath(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["ticket"]
	ticket, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ticket <= 0 {
		return 0, apperrors.Validationf("Invalid ticket: %q", raw)
	}
	return ticket, nil
}

func ticketFromQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("ticket")
	if raw == "" {
		return 0, apperrors.Validation("Ticket parameter is required")
	}
	ticket, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Validation("Invalid ticket format")
	}
	return ticket, nil
}

func (s *Server) handleSendOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	intent, err := req.toIntent()
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.orders.Place(r.Context(), intent)
	if err != nil {
		respondError(w, r, err)
		return
	}

	verb := "executed"
	if intent.Kind.IsPending() {
		verb = "placed"
	}
	respondResult(w, fmt.Sprintf("Order %s successfully", verb), result)
}

func (s *Server) handleOrderCheck(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	intent, err := req.toIntent()
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.orders.Check(r.Context(), intent)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Dry runs come back with retcode 0 or DONE when the order would pass.
	if result.Retcode != 0 && result.Retcode != core.TradeRetcodeDone {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"valid":       false,
			"retcode":     result.Retcode,
			"comment":     result.Comment,
			"margin":      result.Margin,
			"margin_free": result.MarginFree,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  true,
		"result": result,
	})
}

type calcRequest struct {
	Type       string  `json:"type"`
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	PriceOpen  float64 `json:"price_open"`
	PriceClose float64 `json:"price_close"`
}

func (req *calcRequest) kind() (core.OrderKind, error) {
	if req.Type == "" {
		req.Type = "BUY"
	}
	kind, err := core.ParseOrderKind(req.Type)
	if err != nil {
		return 0, apperrors.Validation(err.Error())
	}
	return kind, nil
}

func (s *Server) handleCalcMargin(w http.ResponseWriter, r *http.Request) {
	var req calcRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	kind, err := req.kind()
	if err != nil {
		respondError(w, r, err)
		return
	}

	margin, err := s.orders.CalcMargin(r.Context(), kind, req.Symbol, req.Volume, req.Price)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": req.Symbol,
		"margin": margin,
	})
}

func (s *Server) handleCalcProfit(w http.ResponseWriter, r *http.Request) {
	var req calcRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	kind, err := req.kind()
	if err != nil {
		respondError(w, r, err)
		return
	}

	profit, err := s.orders.CalcProfit(r.Context(), kind, req.Symbol, req.Volume, req.PriceOpen, req.PriceClose)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": req.Symbol,
		"profit": profit,
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	var ticket int64
	if raw := r.URL.Query().Get("ticket"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, r, apperrors.Validation("Invalid ticket format"))
			return
		}
		ticket = parsed
	}

	orders, err := s.orders.List(r.Context(), symbol, ticket)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	ticket, err := ticketFromPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.orders.Cancel(r.Context(), ticket)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondResult(w, "Order cancelled successfully", result)
}

type modifyOrderRequest struct {
	Price *float64 `json:"price"`
	SL    *float64 `json:"sl"`
	TP    *float64 `json:"tp"`
}

func (s *Server) handleModifyOrder(w http.ResponseWriter, r *http.Request) {
	ticket, err := ticketFromPath(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req modifyOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.orders.Modify(r.Context(), ticket, req.Price, req.SL, req.TP)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondResult(w, "Order modified successfully", result)
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	var magic *int64
	if raw := r.URL.Query().Get("magic"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, r, apperrors.Validation("Invalid magic format"))
			return
		}
		magic = &parsed
	}

	positions, err := s.positions.List(r.Context(), symbol, magic)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

func (s *Server) handlePositionsTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.positions.Total(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"total": total})
}

// positionRef accepts either a bare ticket number or a position object with a
// "ticket" field, so clients posting the full position payload keep working.
type positionRef struct {
	Ticket int64
}

func (p *positionRef) UnmarshalJSON(data []byte) error {
	var ticket int64
	if err := json.Unmarshal(data, &ticket); err == nil {
		p.Ticket = ticket
		return nil
	}
	var obj struct {
		Ticket int64 `json:"ticket"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.Ticket = obj.Ticket
	return nil
}

type closePositionRequest struct {
	Position positionRef `json:"position"`
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closePositionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Position.Ticket == 0 {
		respondError(w, r, apperrors.Validation("Position data is required"))
		return
	}

	result, err := s.positions.Close(r.Context(), req.Position.Ticket)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondResult(w, "Position closed successfully", result)
}

type partialCloseRequest struct {
	Ticket int64   `json:"ticket"`
	Volume float64 `json:"volume"`
}

func (s *Server) handlePartialClose(w http.ResponseWriter, r *http.Request) {
	var req partialCloseRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Ticket == 0 || req.Volume == 0 {
		respondError(w, r, apperrors.Validation("Missing required fields").
			WithDetails(map[string]interface{}{"required": []string{"ticket", "volume"}}))
		return
	}

	result, err := s.positions.PartialClose(r.Context(), req.Ticket, req.Volume)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondResult(w, "Position partially closed successfully", result)
}

type closeAllRequest struct {
	OrderType string `json:"order_type"`
	Magic     *int64 `json:"magic"`
}

func (s *Server) handleCloseAll(w http.ResponseWriter, r *http.Request) {
	var req closeAllRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
	}

	result, err := s.positions.CloseAll(r.Context(), req.OrderType, req.Magic)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if result.Message != "" {
		respondJSON(w, http.StatusOK, map[string]string{"message": result.Message})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Closed %d positions", result.Closed),
		"closed":  result.Closed,
		"total":   result.Total,
		"results": result.Outcomes,
	})
}

type modifySLTPRequest struct {
	Position int64    `json:"position"`
	SL       *float64 `json:"sl"`
	TP       *float64 `json:"tp"`
}

func (s *Server) handleModifySLTP(w http.ResponseWriter, r *http.Request) {
	var req modifySLTPRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Position == 0 {
		respondError(w, r, apperrors.Validation("Position data is required"))
		return
	}

	result, err := s.positions.ModifyStops(r.Context(), req.Position, req.SL, req.TP)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondResult(w, "SL/TP modified successfully", result)
}
