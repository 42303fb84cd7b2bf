// Package server exposes the HTTP surface of the bot: the payment gateway
// webhook and a health probe.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ajibnet/ajibot/internal/config"
	"github.com/ajibnet/ajibot/internal/domain"
	"github.com/ajibnet/ajibot/internal/service"
)

const SignatureHeader = "X-Heleket-Signature"

// Server is the passive confirmation channel: it verifies signed gateway
// callbacks and forwards them into the same reconciliation entry point the
// poller uses. Redelivered webhooks are expected and answered 200.
type Server struct {
	orders   *service.OrderService
	invoices service.InvoiceProvider
	http     *http.Server
}

func New(cfg *config.Config, orders *service.OrderService, invoices service.InvoiceProvider) *Server {
	s := &Server{
		orders:   orders,
		invoices: invoices,
	}

	r := chi.NewRouter()
	r.Use(logRequests)
	r.Post("/heleket/webhook", s.handleWebhook)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.http = &http.Server{
		Addr:         cfg.WebhookListenAddr,
		Handler:      r,
		ReadTimeout:  config.WebhookReadTimeout,
		WriteTimeout: config.WebhookWriteTimeout,
	}
	return s
}

// Start runs the listener in the background.
func (s *Server) Start() {
	go func() {
		slog.Info("webhook server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webhook server failed", "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleWebhook answers 400 only for requests that fail signature or
// payload verification; everything else is 200 so the gateway stops
// redelivering. A signature failure never reaches Confirm.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, config.WebhookMaxBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	event, err := s.invoices.VerifyWebhook(body, r.Header.Get(SignatureHeader))
	if err != nil {
		// Fail closed, log for an operator, tell the gateway nothing more.
		slog.Warn("webhook rejected", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if event.Status != service.InvoiceStatusPaid {
		slog.Debug("webhook for non-paid status ignored", "invoice_ref", event.InvoiceRef, "status", event.Status)
		w.WriteHeader(http.StatusOK)
		return
	}

	orderID := event.OrderID
	if orderID == "" {
		order, err := s.orders.GetOrderByInvoiceRef(r.Context(), event.InvoiceRef)
		if err != nil {
			slog.Warn("webhook for unknown invoice", "invoice_ref", event.InvoiceRef)
			w.WriteHeader(http.StatusOK)
			return
		}
		orderID = order.ID
	}

	state, err := s.orders.Confirm(r.Context(), orderID, domain.Evidence{
		Source:     domain.SourceWebhook,
		InvoiceRef: event.InvoiceRef,
		Amount:     event.Amount,
		Currency:   event.Currency,
	})
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		slog.Warn("webhook for unknown order", "order_id", orderID, "invoice_ref", event.InvoiceRef)
	case errors.Is(err, domain.ErrAmountMismatch):
		// Order is frozen in invoiced for manual review; the gateway has
		// nothing further to contribute, so acknowledge.
	case err != nil:
		slog.Error("webhook confirmation failed", "order_id", orderID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	default:
		slog.Info("webhook confirmation processed", "order_id", orderID, "state", state)
	}
	w.WriteHeader(http.StatusOK)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Debug("http request",
			"method", r.Method,
			"uri", r.RequestURI,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
