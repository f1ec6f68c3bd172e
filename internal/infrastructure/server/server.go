// Package server exposes the gateway's HTTP API: account and market reads,
// order and position writes, and the health probes. Every trading route runs
// behind the connection gate; health probes never touch the venue.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/config"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/connection"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/infrastructure/health"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/marketdata"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/order"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/position"
)

type Server struct {
	cfg       *config.Config
	logger    core.ILogger
	conn      *connection.Manager
	orders    *order.Service
	positions *position.Service
	data      *marketdata.Service
	health    *health.Manager

	router *mux.Router
	srv    *http.Server
}

func NewServer(
	cfg *config.Config,
	conn *connection.Manager,
	orders *order.Service,
	positions *position.Service,
	data *marketdata.Service,
	healthMgr *health.Manager,
	logger core.ILogger,
) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger.WithField("component", "api_server"),
		conn:      conn,
		orders:    orders,
		positions: positions,
		data:      data,
		health:    healthMgr,
		router:    mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Account and symbols.
	r.HandleFunc("/account", s.requireConnection(s.handleAccount)).Methods("GET")
	r.HandleFunc("/symbols", s.requireConnection(s.handleSymbols)).Methods("GET")
	r.HandleFunc("/symbol_info/{symbol}", s.requireConnection(s.handleSymbolInfo)).Methods("GET")
	r.HandleFunc("/symbol_info_tick/{symbol}", s.requireConnection(s.handleSymbolTick)).Methods("GET")

	// OHLC data.
	r.HandleFunc("/fetch_data_pos", s.requireConnection(s.handleFetchDataPos)).Methods("GET")
	r.HandleFunc("/fetch_data_range", s.requireConnection(s.handleFetchDataRange)).Methods("GET")

	// Orders.
	r.HandleFunc("/order", s.requireConnection(s.handleSendOrder)).Methods("POST")
	r.HandleFunc("/order_check", s.requireConnection(s.handleOrderCheck)).Methods("POST")
	r.HandleFunc("/order_calc_margin", s.requireConnection(s.handleCalcMargin)).Methods("POST")
	r.HandleFunc("/order_calc_profit", s.requireConnection(s.handleCalcProfit)).Methods("POST")
	r.HandleFunc("/orders", s.requireConnection(s.handleListOrders)).Methods("GET")
	r.HandleFunc("/orders/{ticket}", s.requireConnection(s.handleCancelOrder)).Methods("DELETE")
	r.HandleFunc("/orders/{ticket}", s.requireConnection(s.handleModifyOrder)).Methods("PUT")

	// Positions.
	r.HandleFunc("/get_positions", s.requireConnection(s.handleGetPositions)).Methods("GET")
	r.HandleFunc("/positions_total", s.requireConnection(s.handlePositionsTotal)).Methods("GET")
	r.HandleFunc("/close_position", s.requireConnection(s.handleClosePosition)).Methods("POST")
	r.HandleFunc("/position_close_partial", s.requireConnection(s.handlePartialClose)).Methods("POST")
	r.HandleFunc("/close_all_positions", s.requireConnection(s.handleCloseAll)).Methods("POST")
	r.HandleFunc("/modify_sl_tp", s.requireConnection(s.handleModifySLTP)).Methods("POST")

	// History.
	r.HandleFunc("/history_deals_get", s.requireConnection(s.handleHistoryDeals)).Methods("GET")
	r.HandleFunc("/history_orders_get", s.requireConnection(s.handleHistoryOrders)).Methods("GET")
	r.HandleFunc("/get_deal_from_ticket", s.requireConnection(s.handleDealFromTicket)).Methods("GET")
	r.HandleFunc("/get_order_from_ticket", s.requireConnection(s.handleOrderFromTicket)).Methods("GET")

	// Health probes, no connection gate.
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/health/ready", s.handleReady).Methods("GET")
	r.HandleFunc("/health/live", s.handleLive).Methods("GET")
}

// Handler returns the fully wrapped handler chain, exported for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	})
	return s.recovery(s.requestID(s.accessLog(c.Handler(s.router))))
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("starting API server", "port", s.cfg.Server.Port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed", "error", err.Error())
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("stopping API server")
	return s.srv.Shutdown(ctx)
}
