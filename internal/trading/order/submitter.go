package order

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/config"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
	"github.com/Gabriel-Rockson/mt5-gateway/pkg/telemetry"
)

// Submitter owns the single-shot trade submission path shared by every write
// operation: rate limiting, the venue call, and result classification. It
// never retries; retry is exclusively the connection manager's reconnection
// policy, and resubmitting a trade could duplicate a position.
type Submitter struct {
	terminal core.Terminal
	logger   core.ILogger
	limiter  *rate.Limiter

	connCodes    map[int]struct{}
	connRetcodes map[int]struct{}
}

// NewSubmitter builds the shared submission path. The classification sets
// come from config so operators can extend them without a rebuild.
func NewSubmitter(terminal core.Terminal, cfg *config.Config, logger core.ILogger) *Submitter {
	connCodes := make(map[int]struct{}, len(cfg.Classification.ConnectionErrorCodes))
	for _, code := range cfg.Classification.ConnectionErrorCodes {
		connCodes[code] = struct{}{}
	}
	connRetcodes := make(map[int]struct{}, len(cfg.Classification.ConnectionRetcodes))
	for _, code := range cfg.Classification.ConnectionRetcodes {
		connRetcodes[code] = struct{}{}
	}

	limit := rate.Limit(cfg.Trading.OrderRateLimit)
	if cfg.Trading.OrderRateLimit <= 0 {
		limit = rate.Inf
	}

	return &Submitter{
		terminal:     terminal,
		logger:       logger.WithField("component", "submitter"),
		limiter:      rate.NewLimiter(limit, 1),
		connCodes:    connCodes,
		connRetcodes: connRetcodes,
	}
}

// Submit sends one trade request and classifies the outcome. A reply with the
// done retcode is success; everything else becomes a typed error.
func (s *Submitter) Submit(ctx context.Context, op string, req *core.TradeRequest) (*core.TradeResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Internal(op, err)
	}

	result, err := s.terminal.OrderSend(ctx, req)
	if err != nil {
		s.logger.Error("trade submission transport failure",
			"op", op,
			"symbol", req.Symbol,
			"error", err.Error(),
		)
		return nil, apperrors.Connection(op, fmt.Sprintf("Terminal call failed: %s", err))
	}
	if result == nil {
		// The venue returns no result object at all when the session died
		// mid-call. Never retried here.
		return nil, apperrors.Validation("Order execution failed - MT5 returned None")
	}

	if result.Done() {
		telemetry.GetGlobalMetrics().RecordOrderSubmitted(ctx, req.Kind.String())
		s.logger.Info("trade executed",
			"op", op,
			"symbol", req.Symbol,
			"type", req.Kind.String(),
			"volume", result.Volume,
			"price", result.Price,
			"order", result.Order,
			"deal", result.Deal,
		)
		return result, nil
	}

	last := s.terminal.LastError()
	if s.isConnectionFault(last.Code, result.Retcode) {
		s.logger.Warn("trade failed with connection fault",
			"op", op,
			"retcode", result.Retcode,
			"last_error_code", last.Code,
			"last_error", last.Message,
		)
		return nil, apperrors.Connection(op,
			fmt.Sprintf("Connection error during order execution: %s (retcode %d)", result.Comment, result.Retcode))
	}

	telemetry.GetGlobalMetrics().RecordOrderRejected(ctx, req.Kind.String(), result.Retcode)
	s.logger.Warn("trade rejected by venue",
		"op", op,
		"symbol", req.Symbol,
		"retcode", result.Retcode,
		"comment", result.Comment,
	)
	return nil, apperrors.Rejected(op, result.Retcode, result.Comment, last.Code, last.Message)
}

// isConnectionFault reports whether the failure looks like a dead or flapping
// session rather than a refusal of the instruction itself.
func (s *Submitter) isConnectionFault(lastErrorCode, retcode int) bool {
	if _, ok := s.connCodes[lastErrorCode]; ok {
		return true
	}
	_, ok := s.connRetcodes[retcode]
	return ok
}
