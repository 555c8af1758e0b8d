package models

import "time"

const (
	sampleDateLayout = "2006-01-02"
	sampleTimeLayout = "15:04:05"
)

// TrackedItem is a (URL, subscriber) pair under periodic price observation.
type TrackedItem struct {
	URL          string    `json:"url"`
	SubscriberID string    `json:"user_id"`
	ChatID       string    `json:"chat_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Key identifies the item uniquely across subscribers.
func (t *TrackedItem) Key() string {
	return TrackingKey(t.SubscriberID, t.URL)
}

// TrackingKey builds the identity used for a subscriber/URL pair.
func TrackingKey(subscriberID, url string) string {
	return subscriberID + "|" + url
}

// PriceSample is one observed price. Samples are append-only per TrackedItem.
type PriceSample struct {
	URL          string    `json:"url"`
	SubscriberID string    `json:"user_id"`
	Timestamp    time.Time `json:"timestamp"`
	Price        float64   `json:"price"`
	Title        string    `json:"title,omitempty"`
}

// Date renders the sample day as YYYY-MM-DD.
func (s *PriceSample) Date() string {
	return s.Timestamp.Format(sampleDateLayout)
}

// Clock renders the sample time of day as HH:MM:SS.
func (s *PriceSample) Clock() string {
	return s.Timestamp.Format(sampleTimeLayout)
}

// ParseSampleTime joins the persisted date and time columns back into a timestamp.
func ParseSampleTime(date, clock string) (time.Time, error) {
	return time.ParseInLocation(sampleDateLayout+" "+sampleTimeLayout, date+" "+clock, time.Local)
}

// PriceAlert describes a price decrease. NewPrice is always strictly below OldPrice.
type PriceAlert struct {
	SubscriberID string
	DisplayName  string
	Title        string
	OldPrice     float64
	NewPrice     float64
	URL          string
	ImageURL     string
}
