package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/avvvet/pickbox-services/internal/gamesvc/engine"
	"github.com/avvvet/pickbox-services/internal/gamesvc/service"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

const defaultPageSize = 10

// Games is the game API the handlers drive.
type Games interface {
	StartGame(ctx context.Context, c service.Caller) (engine.Flow, error)
	Answer(ctx context.Context, c service.Caller, gameID int64, choice int) (engine.Flow, error)
	Reveal(ctx context.Context, c service.Caller, gameID int64) (engine.Flow, error)
	Pass(ctx context.Context, c service.Caller, gameID int64) (engine.Flow, error)
	Collect(ctx context.Context, c service.Caller, gameID int64) (engine.Flow, error)
	GetGame(ctx context.Context, c service.Caller, gameID int64) (engine.Flow, error)

	Prizes(ctx context.Context, c service.Caller) (service.PrizeTable, error)
	GamePrizes(ctx context.Context, c service.Caller, gameID int64) (service.PrizeTable, error)
	Summary(ctx context.Context, c service.Caller, limit, offset int) (service.SummaryPage, error)
	Winners(ctx context.Context, c service.Caller) (service.WinnersPayouts, error)
	Statistics(ctx context.Context, c service.Caller) (service.DepositReport, error)
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	games     Games
	port      string
}

func NewHandler(games Games, port string) *Handler {
	return &Handler{games: games, port: port}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

type answerRequest struct {
	Answer int `json:"answer"`
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) success(w http.ResponseWriter, data interface{}) {
	h.CreateResponse(w, Response{Message: "success", Code: http.StatusOK, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.CreateResponse(w, errorResponse(err))
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.CreateResponse(w, Response{Message: msg, Code: http.StatusBadRequest, Error: "bad_request"})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "game service is running at port " + h.port,
		Code:    200,
		Data:    nil,
	}
	h.CreateResponse(w, rsp)
}

const maxRequestKey = 128

// caller reads the player from the verified token. The Idempotency-Key
// header, when sent, makes a retried start return the game it already started.
// Keys longer than the stored column are folded into a UUID.
func caller(r *http.Request) (service.Caller, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return service.Caller{}, err
	}
	userID, err := int64Claim(claims["user_id"])
	if err != nil {
		return service.Caller{}, fmt.Errorf("user_id claim: %w", err)
	}
	currency, _ := claims["currency"].(string)
	if currency == "" {
		return service.Caller{}, errors.New("currency claim is missing")
	}

	key := r.Header.Get("Idempotency-Key")
	switch {
	case key == "":
		key = uuid.NewString()
	case len(key) > maxRequestKey:
		key = uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
	}
	return service.Caller{UserID: userID, Currency: strings.ToUpper(currency), RequestKey: key}, nil
}

func int64Claim(v interface{}) (int64, error) {
	switch id := v.(type) {
	case float64:
		return int64(id), nil
	case json.Number:
		return id.Int64()
	case string:
		return strconv.ParseInt(id, 10, 64)
	case nil:
		return 0, errors.New("missing")
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func gameID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "gameId"), 10, 64)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

type gameOp func(ctx context.Context, c service.Caller, gameID int64) (engine.Flow, error)

// onGame resolves the caller and game id, then runs op.
func (h *Handler) onGame(op gameOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			h.CreateResponse(w, Response{Message: "Unauthorized", Code: http.StatusUnauthorized, Error: err.Error()})
			return
		}
		id, err := gameID(r)
		if err != nil {
			h.fail(w, engine.ErrGameNotFound)
			return
		}
		flow, err := op(r.Context(), c, id)
		if err != nil {
			h.fail(w, err)
			return
		}
		h.success(w, flow)
	}
}

func (h *Handler) withCaller(fn func(w http.ResponseWriter, r *http.Request, c service.Caller)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := caller(r)
		if err != nil {
			h.CreateResponse(w, Response{Message: "Unauthorized", Code: http.StatusUnauthorized, Error: err.Error()})
			return
		}
		fn(w, r, c)
	}
}

func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request, c service.Caller) {
	flow, err := h.games.StartGame(r.Context(), c)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.success(w, flow)
}

func (h *Handler) AnswerGame(w http.ResponseWriter, r *http.Request, c service.Caller) {
	id, err := gameID(r)
	if err != nil {
		h.fail(w, engine.ErrGameNotFound)
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "answer is required")
		return
	}
	flow, err := h.games.Answer(r.Context(), c, id, req.Answer)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.success(w, flow)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request, c service.Caller) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit == 0 || limit > 100 {
		limit = defaultPageSize
	}
	page, err := h.games.Summary(r.Context(), c, limit, queryInt(r, "offset", 0))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.success(w, page)
}

func (h *Handler) GamePrizes(w http.ResponseWriter, r *http.Request, c service.Caller) {
	id, err := gameID(r)
	if err != nil {
		h.fail(w, engine.ErrGameNotFound)
		return
	}
	table, err := h.games.GamePrizes(r.Context(), c, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.success(w, table)
}

func (h *Handler) Prizes(w http.ResponseWriter, r *http.Request, c service.Caller) {
	table, err := h.games.Prizes(r.Context(), c)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.success(w, table)
}

func (h *Handler) Winners(w http.ResponseWriter, r *http.Request, c service.Caller) {
	payouts, err := h.games.Winners(r.Context(), c)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.success(w, payouts)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request, c service.Caller) {
	report, err := h.games.Statistics(r.Context(), c)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.success(w, report)
}
