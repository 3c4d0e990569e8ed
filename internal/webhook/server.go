package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/negroni"
)

// Webhook bodies are a few kilobytes. Anything larger is rejected before parsing.
const maxBodyBytes = 1 << 20

const shutdownTimeout = 10 * time.Second

// Serves the webhook until SIGINT or SIGTERM.
func Server(logLevel zerolog.Level) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zerolog.SetGlobalLevel(logLevel)

	settings, err := LoadSettings(true)
	if err != nil {
		log.Error().Err(err).Msg("failed to load settings")
		return
	}

	service, err := NewService(ctx, settings)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialise service")
		return
	}
	defer service.Close()

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           NewRouter(service.Handler, settings.WebhookPath, service.Registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", settings.ListenAddr).Str("path", settings.WebhookPath).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to serve")
			stop()
		}
	}()

	<-ctx.Done()
	log.Warn().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down server")
	}
}

func NewRouter(handler *Handler, path string, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Handle(path, handler)

	n := negroni.New(newRecovery(), negroni.HandlerFunc(accessLog))
	n.UseHandler(r)

	return n
}

func (handler *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Msg("failed to read request body")
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	res := handler.Handle(r.Context(), Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		Body:       string(body),
		RemoteAddr: r.RemoteAddr,
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if res.StatusCode == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", http.MethodPost)
	}
	w.WriteHeader(res.StatusCode)
	w.Write([]byte(res.Body))
}

func newRecovery() *negroni.Recovery {
	logger := log.With().Str("component", "recovery").Logger()

	recovery := negroni.NewRecovery()
	recovery.Logger = &logger
	recovery.PrintStack = false
	recovery.PanicHandlerFunc = func(info *negroni.PanicInformation) {
		log.Error().Interface("panic", info.RecoveredPanic).Str("path", info.Request.URL.Path).Msg("recovered from panic")
	}
	return recovery
}

// Logs the path only. The query string may carry the secret.
func accessLog(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(rw, r)

	res := rw.(negroni.ResponseWriter)
	log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", res.Status()).
		Int("size", res.Size()).
		Dur("took", time.Since(start)).
		Msg("handled request")
}
