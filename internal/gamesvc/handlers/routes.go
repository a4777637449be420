package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Post("/games/create", h.withCaller(h.CreateGame))
			r.Get("/games/all/summary", h.withCaller(h.Summary))

			r.Route("/games/{gameId}", func(r chi.Router) {
				r.Get("/", h.onGame(h.games.GetGame))
				r.Get("/prizes", h.withCaller(h.GamePrizes))
				r.Post("/answer", h.withCaller(h.AnswerGame))
				r.Post("/reveal", h.onGame(h.games.Reveal))
				r.Post("/collect", h.onGame(h.games.Collect))
				r.Post("/pass", h.onGame(h.games.Pass))
			})

			r.Get("/prizes", h.withCaller(h.Prizes))
			r.Get("/winners", h.withCaller(h.Winners))
			r.Get("/statistics", h.withCaller(h.Statistics))
		})
	})
}

func (h *Handler) InitAuth(secret string, debugToken bool) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
	if !debugToken {
		return
	}

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"user_id":  1,
		"currency": "EUR",
		"exp":      expirationTime,
	})

	// For debugging only, never enabled in production
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
}
