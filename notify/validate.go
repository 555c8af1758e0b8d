package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"pricehound/models"
	"pricehound/utils"
)

var (
	// ErrInvalidAlert means the alert failed structural validation and must not be sent.
	ErrInvalidAlert = errors.New("invalid price alert")
	// ErrNotAnImage means the image URL did not answer with an image content type.
	ErrNotAnImage = errors.New("url does not point to an image")
)

type alertFields struct {
	URL      string  `validate:"required,http_url"`
	ImageURL string  `validate:"omitempty,http_url"`
	OldPrice float64 `validate:"gte=0,gtfield=NewPrice"`
	NewPrice float64 `validate:"gte=0"`
}

// Validator checks alerts and recipients before anything is sent.
type Validator struct {
	validate *validator.Validate
	client   *http.Client
}

// NewValidator creates a Validator probing images with client.
func NewValidator(client *http.Client) *Validator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Validator{validate: validator.New(), client: client}
}

// ValidateAlert requires http(s) URLs, non-negative prices and a strict decrease.
func (v *Validator) ValidateAlert(a *models.PriceAlert) error {
	if a == nil {
		return ErrInvalidAlert
	}
	err := v.validate.Struct(alertFields{
		URL:      a.URL,
		ImageURL: a.ImageURL,
		OldPrice: a.OldPrice,
		NewPrice: a.NewPrice,
	})
	if err != nil {
		return utils.E(utils.KindMalformed, "validate alert", fmt.Errorf("%w: %v", ErrInvalidAlert, err))
	}
	return nil
}

// ValidEmail reports whether addr is a syntactically valid email address.
func (v *Validator) ValidEmail(addr string) bool {
	return v.validate.Var(addr, "required,email") == nil
}

// ProbeImage issues a HEAD request and requires an image/* content type.
func (v *Validator) ProbeImage(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return utils.E(utils.KindMalformed, "probe image", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return utils.E(utils.KindOf(err), "probe image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return utils.E(utils.KindNotFound, "probe image", fmt.Errorf("status %d", resp.StatusCode))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return utils.E(utils.KindMalformed, "probe image", ErrNotAnImage)
	}
	return nil
}
