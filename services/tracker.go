package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"pricehound/extract"
	"pricehound/fetcher"
	"pricehound/models"
	"pricehound/storage"
	"pricehound/utils"
)

var (
	// ErrPriceUnavailable rejects a registration whose initial price could not be read.
	ErrPriceUnavailable = errors.New("initial price unavailable")
	// ErrAlreadyTracked rejects a second registration of the same subscriber and URL.
	ErrAlreadyTracked = errors.New("item already tracked")
	// ErrNotTracked is returned when unregistering an unknown item.
	ErrNotTracked = errors.New("item not tracked")
)

// PageSource resolves a product page's title and image. *extract.Resolver satisfies it.
type PageSource interface {
	Resolve(ctx context.Context, url string) (*extract.Page, error)
}

// Notifier delivers a price alert to the item's subscriber. *notify.Dispatcher satisfies it.
type Notifier interface {
	Notify(ctx context.Context, item *models.TrackedItem, alert *models.PriceAlert) error
}

// TrackRequest is a request to start observing a product page.
type TrackRequest struct {
	URL          string `json:"url" validate:"required,http_url"`
	SubscriberID string `json:"user_id" validate:"required"`
	ChatID       string `json:"chat_id,omitempty"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	DisplayName  string `json:"name,omitempty"`
}

// TrackerDeps are the collaborators of a Tracker.
type TrackerDeps struct {
	Store    storage.Store
	Prices   extract.PriceSource
	Pages    PageSource
	Notifier Notifier
	Interval time.Duration
	Logger   *utils.Logger
}

type trackedEntry struct {
	item    *models.TrackedItem
	entryID cron.EntryID
	cancel  context.CancelFunc

	// ticking is held while a poll of the item runs.
	ticking sync.Mutex
}

// Tracker polls every registered item on a fixed interval, appends a price sample per tick
// and alerts the subscriber when the price falls below the previous sample.
// Ticks of one item never overlap; different items poll independently.
type Tracker struct {
	deps     TrackerDeps
	validate *validator.Validate
	cron     *cron.Cron
	now      func() time.Time

	root   context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	items map[string]*trackedEntry
}

// NewTracker creates a Tracker. Call Start to begin polling.
func NewTracker(deps TrackerDeps) *Tracker {
	if deps.Interval <= 0 {
		deps.Interval = time.Hour
	}
	logger := utils.CronLogger{Logger: deps.Logger}
	root, cancel := context.WithCancel(context.Background())

	return &Tracker{
		deps:     deps,
		validate: validator.New(),
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		now:    time.Now,
		root:   root,
		cancel: cancel,
		items:  make(map[string]*trackedEntry),
	}
}

// Start begins running scheduled polls.
func (t *Tracker) Start() {
	t.cron.Start()
}

// Stop cancels every item and waits for in-flight polls to return.
func (t *Tracker) Stop() {
	t.cancel()
	<-t.cron.Stop().Done()

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, e := range t.items {
		if e.cancel != nil {
			e.cancel()
		}
		delete(t.items, key)
	}
}

// Register validates req, reads the current price and title, persists the item with its first
// sample and schedules polling. If the price cannot be read nothing is written.
func (t *Tracker) Register(ctx context.Context, req TrackRequest) (*models.PriceSample, error) {
	if _, err := fetcher.ValidateURL(req.URL); err != nil {
		return nil, err
	}
	if err := t.validate.Struct(req); err != nil {
		return nil, utils.E(utils.KindMalformed, "track request", err)
	}

	key := models.TrackingKey(req.SubscriberID, req.URL)
	if !t.reserve(key) {
		return nil, fmt.Errorf("%s: %w", key, ErrAlreadyTracked)
	}
	registered := false
	defer func() {
		if !registered {
			t.release(key)
		}
	}()

	price, err := t.deps.Prices.ExtractPrice(ctx, req.URL)
	if err != nil {
		t.deps.Logger.Warn("[tracker] Rejecting %s: %v", req.URL, err)
		return nil, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	title, _ := t.describe(ctx, req.URL)

	now := t.now()
	item := &models.TrackedItem{
		URL:          req.URL,
		SubscriberID: req.SubscriberID,
		ChatID:       req.ChatID,
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		CreatedAt:    now,
	}
	sample := &models.PriceSample{
		URL:          req.URL,
		SubscriberID: req.SubscriberID,
		Timestamp:    now,
		Price:        price,
		Title:        title,
	}

	if err := t.deps.Store.RegisterTrackedItem(ctx, item); err != nil {
		return nil, err
	}
	if err := t.deps.Store.AppendSample(ctx, sample); err != nil {
		if uerr := t.deps.Store.UnregisterTrackedItem(ctx, item.SubscriberID, item.URL); uerr != nil {
			t.deps.Logger.Error("[tracker] Rollback of %s failed: %v", key, uerr)
		}
		return nil, err
	}

	t.schedule(item)
	registered = true

	t.deps.Logger.Info("[tracker] Tracking %s for %s at %.2f every %v", req.URL, req.SubscriberID, price, t.deps.Interval)
	return sample, nil
}

// Unregister stops polling the item and removes its registration. Its samples are kept.
func (t *Tracker) Unregister(ctx context.Context, subscriberID, url string) error {
	key := models.TrackingKey(subscriberID, url)

	t.mu.Lock()
	e, ok := t.items[key]
	if ok && e.cancel == nil {
		// Registration still in progress.
		ok = false
	}
	if ok {
		delete(t.items, key)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotTracked)
	}

	e.cancel()
	t.cron.Remove(e.entryID)
	// Wait out a tick that was already running; it observes the cancellation before writing.
	e.ticking.Lock()
	e.ticking.Unlock()

	if err := t.deps.Store.UnregisterTrackedItem(ctx, subscriberID, url); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	t.deps.Logger.Info("[tracker] Stopped tracking %s for %s", url, subscriberID)
	return nil
}

// Resume schedules every registration persisted by a previous run, without re-reading prices.
func (t *Tracker) Resume(ctx context.Context) (int, error) {
	items, err := t.deps.Store.TrackedItems(ctx)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, item := range items {
		if !t.reserve(item.Key()) {
			continue
		}
		t.schedule(item)
		resumed++
	}
	t.deps.Logger.Info("[tracker] Resumed %d of %d tracked items", resumed, len(items))
	return resumed, nil
}

// Tracked returns the actively polled items, oldest first.
func (t *Tracker) Tracked() []*models.TrackedItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*models.TrackedItem, 0, len(t.items))
	for _, e := range t.items {
		if e.item != nil {
			out = append(out, e.item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (t *Tracker) reserve(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[key]; exists {
		return false
	}
	t.items[key] = &trackedEntry{}
	return true
}

func (t *Tracker) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, key)
}

func (t *Tracker) schedule(item *models.TrackedItem) {
	ctx, cancel := context.WithCancel(t.root)
	e := &trackedEntry{item: item, cancel: cancel}
	e.entryID = t.cron.Schedule(cron.Every(t.deps.Interval), cron.FuncJob(func() {
		t.tick(ctx, e)
	}))

	t.mu.Lock()
	t.items[item.Key()] = e
	t.mu.Unlock()
}

func (t *Tracker) tick(ctx context.Context, e *trackedEntry) {
	e.ticking.Lock()
	defer e.ticking.Unlock()
	t.poll(ctx, e.item)
}

// poll runs one observation of item.
func (t *Tracker) poll(ctx context.Context, item *models.TrackedItem) {
	if ctx.Err() != nil {
		return
	}

	price, err := t.deps.Prices.ExtractPrice(ctx, item.URL)
	if err != nil {
		t.deps.Logger.Warn("[tracker] %s: price unavailable, skipping tick: %v", item.URL, err)
		return
	}
	title, image := t.describe(ctx, item.URL)

	prev, err := t.deps.Store.LastSample(ctx, item.SubscriberID, item.URL)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		t.deps.Logger.Error("[tracker] %s: reading previous sample: %v", item.URL, err)
	}

	if ctx.Err() != nil {
		t.deps.Logger.Debug("[tracker] %s: cancelled during tick, discarding %.2f", item.URL, price)
		return
	}

	sample := &models.PriceSample{
		URL:          item.URL,
		SubscriberID: item.SubscriberID,
		Timestamp:    t.now(),
		Price:        price,
		Title:        title,
	}
	if err := t.deps.Store.AppendSample(ctx, sample); err != nil {
		t.deps.Logger.Error("[tracker] %s: persisting sample failed, no alert this tick: %v", item.URL, err)
		return
	}

	if prev == nil || !(price < prev.Price) {
		t.deps.Logger.Debug("[tracker] %s: %.2f (no drop)", item.URL, price)
		return
	}

	alert := &models.PriceAlert{
		SubscriberID: item.SubscriberID,
		DisplayName:  item.DisplayName,
		Title:        title,
		OldPrice:     prev.Price,
		NewPrice:     price,
		URL:          item.URL,
		ImageURL:     image,
	}
	if ctx.Err() != nil {
		return
	}
	t.deps.Logger.Info("[tracker] %s: price dropped %.2f → %.2f", item.URL, prev.Price, price)
	if err := t.deps.Notifier.Notify(ctx, item, alert); err != nil {
		t.deps.Logger.Warn("[tracker] %s: alert delivery failed: %v", item.URL, err)
	}
}

func (t *Tracker) describe(ctx context.Context, url string) (title, image string) {
	if t.deps.Pages == nil {
		return "", ""
	}
	page, err := t.deps.Pages.Resolve(ctx, url)
	if err != nil {
		t.deps.Logger.Debug("[tracker] %s: title unavailable: %v", url, err)
		return "", ""
	}
	return page.Title, page.ImageURL
}
