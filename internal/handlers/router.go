package handlers

import (
	"net/http"
	"strings"

	"boostmarket/internal/auth"
	"boostmarket/internal/config"
	"boostmarket/internal/middleware"
	"boostmarket/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	cfg        config.Config
	wallets    WalletService
	conversion ConversionService
	catalog    CatalogService
	orders     OrderService
	audit      AuditStore
	hub        *websocket.Hub
	upgrader   gorillaws.Upgrader
	logger     *zap.Logger
}

func New(cfg config.Config, wallets WalletService, conversion ConversionService, catalog CatalogService, orders OrderService, audit AuditStore, hub *websocket.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:        cfg,
		wallets:    wallets,
		conversion: conversion,
		catalog:    catalog,
		orders:     orders,
		audit:      audit,
		hub:        hub,
		upgrader:   websocket.NewUpgrader(allowedOrigins(cfg.AllowedOrigins)),
		logger:     logger,
	}
}

func allowedOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.cfg.JWTSecret)

	if h.cfg.AppEnv == "development" {
		router.Post("/auth/token", h.IssueToken)
	}

	router.Route("/wallet", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", h.GetWallet)
		r.Get("/gold", h.ListGoldWallets)
		r.Post("/gold", h.OpenGoldWallet)
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
		r.Post("/convert/quote", h.ConvertQuote)
		r.Post("/convert", h.Convert)
		r.Get("/transactions", h.ListTransactions)
		r.Get("/self-check", h.SelfCheck)
	})

	router.Route("/services", func(r chi.Router) {
		r.Get("/", h.SearchServices)
		r.Get("/{id}", h.GetService)
		r.With(authenticated, middleware.RequireRole(auth.RoleBooster)).Post("/", h.CreateService)
		r.With(authenticated).Put("/{id}/status", h.SetServiceStatus)
	})

	router.Route("/orders", func(r chi.Router) {
		r.Use(authenticated)
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.With(middleware.RequireRole(auth.RoleBooster)).Post("/{id}/assign", h.AssignOrder)
		r.With(middleware.RequireRole(auth.RoleBooster)).Post("/{id}/start", h.StartOrder)
		r.With(middleware.RequireRole(auth.RoleBooster)).Post("/{id}/evidence", h.SubmitEvidence)
		r.With(middleware.RequireRole(auth.RoleReviewer)).Post("/{id}/review/begin", h.BeginReview)
		r.With(middleware.RequireRole(auth.RoleReviewer)).Post("/{id}/review", h.ReviewEvidence)
		r.Post("/{id}/cancel", h.CancelOrder)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticated)
		r.Use(middleware.RequireRole(auth.RoleAdmin))
		r.Get("/rates", h.ListRates)
		r.Put("/rates", h.SetRate)
		r.Get("/reconciliation", h.ListReconciliation)
		r.Post("/orders/{id}/retry-earnings", h.RetryEarnings)
		r.Get("/audit", h.ListAuditLogs)
	})

	router.With(authenticated).Get("/ws", h.WS)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	websocket.ServeWS(w, r, h.upgrader, h.hub, userID)
}
