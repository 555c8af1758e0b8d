package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pricehound/extract"
	"pricehound/models"
	"pricehound/notify"
	"pricehound/services"
	"pricehound/utils"
)

const maxBody = 1 << 20

type scrapeRequest struct {
	URL string `json:"url" validate:"required"`
}

type untrackRequest struct {
	URL    string `json:"url" validate:"required"`
	UserID string `json:"user_id" validate:"required"`
}

type trackResponse struct {
	Message      string  `json:"message"`
	InitialPrice float64 `json:"initial_price"`
	Title        string  `json:"title"`
}

type alertRequest struct {
	Username string  `json:"username"`
	OldPrice float64 `json:"old_price"`
	NewPrice float64 `json:"new_price"`
	URL      string  `json:"url" validate:"required"`
	Image    string  `json:"image" validate:"required"`
	UserID   string  `json:"userid"`
	Email    string  `json:"email"`
}

type alertResponse struct {
	Message         string `json:"message"`
	TelegramMessage string `json:"telegram_message,omitempty"`
	EmailMessage    string `json:"email_message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "message": "API is running"})
}

// handleScrapeProducts extracts the title of the posted page and searches every marketplace for it.
func (s *Server) handleScrapeProducts(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if !s.decode(w, r, &req) {
		return
	}

	page, err := s.deps.Titles.Resolve(r.Context(), req.URL)
	switch {
	case err == nil:
	case utils.IsKind(err, utils.KindMalformed):
		writeError(w, http.StatusBadRequest, "Invalid URL format. URL must start with http:// or https://")
		return
	case errors.Is(err, extract.ErrTitleNotFound):
		writeError(w, http.StatusBadRequest, "Could not extract product title from URL")
		return
	default:
		s.deps.Logger.Error("[api] %s: resolving %s: %v", RequestID(r.Context()), req.URL, err)
		writeError(w, http.StatusBadGateway, "Failed to load product page")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Search.Aggregate(r.Context(), page.Title))
}

func (s *Server) handleTrackPrice(w http.ResponseWriter, r *http.Request) {
	var req services.TrackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	sample, err := s.deps.Tracker.Register(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrAlreadyTracked):
		writeError(w, http.StatusConflict, "This product is already being tracked")
		return
	case errors.Is(err, services.ErrPriceUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "Could not extract price from the product page")
		return
	case utils.IsKind(err, utils.KindMalformed):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.deps.Logger.Error("[api] %s: tracking %s: %v", RequestID(r.Context()), req.URL, err)
		writeError(w, http.StatusInternalServerError, "Failed to start tracking")
		return
	}

	writeJSON(w, http.StatusOK, trackResponse{
		Message:      "Tracking started",
		InitialPrice: sample.Price,
		Title:        sample.Title,
	})
}

func (s *Server) handleUntrackPrice(w http.ResponseWriter, r *http.Request) {
	var req untrackRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.deps.Tracker.Unregister(r.Context(), req.UserID, req.URL)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, services.ErrNotTracked):
		writeError(w, http.StatusNotFound, "This product is not being tracked")
	default:
		s.deps.Logger.Error("[api] %s: untracking %s: %v", RequestID(r.Context()), req.URL, err)
		writeError(w, http.StatusInternalServerError, "Failed to stop tracking")
	}
}

func (s *Server) handleTracked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Tracker.Tracked())
}

// handleSendAlert validates a posted alert and delivers it immediately through channel.
func (s *Server) handleSendAlert(channel notify.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req alertRequest
		if !s.decode(w, r, &req) {
			return
		}

		alert := &models.PriceAlert{
			SubscriberID: req.UserID,
			DisplayName:  req.Username,
			OldPrice:     req.OldPrice,
			NewPrice:     req.NewPrice,
			URL:          req.URL,
			ImageURL:     req.Image,
		}
		if err := s.deps.Checker.ValidateAlert(alert); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		recipient := req.UserID
		if channel == notify.ChannelEmail {
			recipient = req.Email
			if !s.deps.Checker.ValidEmail(recipient) {
				writeError(w, http.StatusBadRequest, "Invalid email format")
				return
			}
		} else if recipient == "" {
			writeError(w, http.StatusBadRequest, "userid is required")
			return
		}

		if err := s.deps.Checker.ProbeImage(r.Context(), req.Image); err != nil {
			writeError(w, http.StatusBadRequest, "Image URL is not accessible: "+err.Error())
			return
		}

		err := s.deps.Alerts.SendAlert(r.Context(), channel, recipient, alert)
		switch {
		case err == nil:
		case errors.Is(err, notify.ErrChannelDisabled):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		default:
			s.deps.Logger.Error("[api] %s: sending %s alert for %s: %v", RequestID(r.Context()), channel, req.URL, err)
			writeError(w, http.StatusInternalServerError, "Failed to send price alert")
			return
		}

		resp := alertResponse{}
		if channel == notify.ChannelEmail {
			resp.Message = "Price alert sent to email successfully"
			resp.EmailMessage = notify.EmailBody(alert)
		} else {
			resp.Message = "Price alert sent to Telegram successfully"
			resp.TelegramMessage = notify.ChatMessage(alert)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
