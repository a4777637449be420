package handlers

import (
	"errors"
	"net/http"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type fundsData struct {
	Message      string          `json:"message"`
	CurrentValue decimal.Decimal `json:"current_value"`
	Needed       decimal.Decimal `json:"needed"`
}

type revealData struct {
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
	LastLevel bool `json:"last_level"`
}

// errorResponse maps a game error onto the response envelope. Rule
// violations are client errors; ledger and rate failures are upstream ones.
func errorResponse(err error) Response {
	var (
		funds  *engine.InsufficientFundsError
		reveal *engine.LevelNotRevealableError
		svc    *engine.ServiceError
	)
	switch {
	case errors.Is(err, engine.ErrGameNotFound):
		return Response{Code: http.StatusNotFound, Message: "Content not found.", Error: err.Error()}
	case errors.As(err, &funds):
		return Response{
			Code:    http.StatusBadRequest,
			Message: funds.Message,
			Error:   "insufficient_funds",
			Data:    fundsData{Message: funds.Message, CurrentValue: funds.Current, Needed: funds.Needed},
		}
	case errors.As(err, &reveal):
		return Response{
			Code:    http.StatusBadRequest,
			Message: "Cannot reveal any boxes on this level.",
			Error:   err.Error(),
			Data:    revealData{Remaining: reveal.Remaining, Limit: reveal.Limit, LastLevel: reveal.LastLevel},
		}
	case errors.Is(err, engine.ErrInvalidChoice),
		errors.Is(err, engine.ErrActiveLevelNotFound),
		errors.Is(err, engine.ErrLevelNotActive),
		errors.Is(err, engine.ErrLevelNotCollectable),
		errors.Is(err, engine.ErrLevelNotInactive):
		return Response{Code: http.StatusBadRequest, Message: "Move not allowed.", Error: err.Error()}
	case errors.As(err, &svc):
		log.Errorf("upstream failure: %v", err)
		return Response{Code: http.StatusBadGateway, Message: "Service temporarily unavailable.", Error: svc.Op}
	}
	log.Errorf("unhandled error: %v", err)
	return Response{Code: http.StatusInternalServerError, Message: "Internal server error.", Error: "internal"}
}
