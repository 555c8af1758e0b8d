package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"pricehound/extract"
	"pricehound/models"
	"pricehound/notify"
	"pricehound/services"
	"pricehound/utils"
)

// TitleSource resolves a product page. *extract.Resolver satisfies it.
type TitleSource interface {
	Resolve(ctx context.Context, url string) (*extract.Page, error)
}

// Searcher queries every marketplace backend. *services.Aggregator satisfies it.
type Searcher interface {
	Aggregate(ctx context.Context, query string) models.AggregatedResult
}

// Tracking manages price tracking registrations. *services.Tracker satisfies it.
type Tracking interface {
	Register(ctx context.Context, req services.TrackRequest) (*models.PriceSample, error)
	Unregister(ctx context.Context, subscriberID, url string) error
	Tracked() []*models.TrackedItem
}

// AlertSender delivers one alert through a named channel. *notify.Transports satisfies it.
type AlertSender interface {
	SendAlert(ctx context.Context, channel notify.Channel, recipient string, a *models.PriceAlert) error
}

// AlertChecker validates an alert before it is sent. *notify.Validator satisfies it.
type AlertChecker interface {
	ValidateAlert(a *models.PriceAlert) error
	ValidEmail(addr string) bool
	ProbeImage(ctx context.Context, url string) error
}

// Deps are the services behind the HTTP endpoints.
type Deps struct {
	Titles  TitleSource
	Search  Searcher
	Tracker Tracking
	Alerts  AlertSender
	Checker AlertChecker
	Logger  *utils.Logger
}

// Server exposes extraction, aggregation and tracking over JSON HTTP.
type Server struct {
	deps     Deps
	validate *validator.Validate
	router   *http.ServeMux
	server   *http.Server
}

// New creates a Server listening on addr.
func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps, validate: validator.New()}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(s.router),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.deps.Logger.Info("[api] Listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /scrape-products", s.handleScrapeProducts)
	mux.HandleFunc("POST /track-price", s.handleTrackPrice)
	mux.HandleFunc("DELETE /track-price", s.handleUntrackPrice)
	mux.HandleFunc("GET /tracked", s.handleTracked)
	mux.HandleFunc("POST /send-telegram-alert", s.handleSendAlert(notify.ChannelChat))
	mux.HandleFunc("POST /send-email-alert", s.handleSendAlert(notify.ChannelEmail))
	return mux
}
