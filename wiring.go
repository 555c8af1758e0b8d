package main

import (
	"fmt"
	"net/http"

	"pricehound/browser"
	"pricehound/config"
	"pricehound/extract"
	"pricehound/fetcher"
	"pricehound/notify"
	"pricehound/scraper"
	"pricehound/scraper/megamarket"
	"pricehound/scraper/ozon"
	"pricehound/scraper/wildberries"
	"pricehound/services"
	"pricehound/storage"
	"pricehound/utils"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *utils.Logger
	selectors *config.Selectors
	browser   browser.Options

	resolver   *extract.Resolver
	prices     *extract.PriceExtractor
	aggregator *services.Aggregator
	insights   *services.InsightService
	transports *notify.Transports
	alerts     *notify.Validator
}

func newApp() (*app, error) {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)

	selectors, err := config.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return nil, err
	}
	opts := browser.OptionsFrom(cfg, logger)

	router := &fetcher.Router{
		FastFetcher:     fetcher.NewHTTPFetcher(cfg, logger),
		RenderedFetcher: fetcher.NewRenderedFetcher(opts, cfg.FetchTimeout),
	}

	deps := scraper.Deps{
		Browser:   opts,
		Converter: services.NewCleaner(logger),
		MaxPages:  cfg.MaxPages,
		Budget:    cfg.PageBudget,
		Logger:    logger,
	}
	backends, err := newBackends(selectors, deps)
	if err != nil {
		return nil, err
	}
	aggregator := services.NewAggregator(backends, cfg.AggregateTimeout, logger)
	aggregator.SetStartInterval(cfg.RateLimit)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		selectors:  selectors,
		browser:    opts,
		resolver:   extract.NewResolver(router, extract.NewCascade(logger), logger),
		prices:     extract.NewPriceExtractor(selectors, opts, cfg.FetchTimeout, logger),
		aggregator: aggregator,
		insights:   services.NewInsightService(logger),
	}
	a.transports = a.newTransports()
	a.alerts = notify.NewValidator(&http.Client{Timeout: cfg.FetchTimeout})
	return a, nil
}

func newBackends(sel *config.Selectors, deps scraper.Deps) ([]scraper.Backend, error) {
	ctors := []struct {
		name string
		new  func(config.MarketplaceSelectors, scraper.Deps) *scraper.Marketplace
	}{
		{"ozon", ozon.New},
		{"wildberries", wildberries.New},
		{"megamarket", megamarket.New},
	}

	backends := make([]scraper.Backend, 0, len(ctors))
	for _, c := range ctors {
		s, ok := sel.Marketplaces[c.name]
		if !ok {
			return nil, fmt.Errorf("no selectors for marketplace %q", c.name)
		}
		backends = append(backends, c.new(s, deps))
	}
	return backends, nil
}

func (a *app) openStore() (storage.Store, error) {
	switch a.cfg.StoreDriver {
	case "postgres":
		a.logger.Info("[store] Using PostgreSQL at %s:%s", a.cfg.PostgresHost, a.cfg.PostgresPort)
		return storage.NewPostgresStore(a.cfg.DSN())
	case "badger", "":
		a.logger.Info("[store] Using badger at %s", a.cfg.BadgerPath)
		return storage.NewBadgerStore(a.cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", a.cfg.StoreDriver)
	}
}

func (a *app) newTransports() *notify.Transports {
	transports := &notify.Transports{}
	if a.cfg.TelegramToken != "" {
		transports.Chat = notify.NewTelegramTransport(a.cfg.TelegramAPIBase, a.cfg.TelegramToken, a.cfg.FetchTimeout, a.logger)
	}
	if a.cfg.EmailEnabled() {
		transports.Email = notify.NewEmailTransport(a.cfg.SMTPHost, a.cfg.SMTPPort,
			a.cfg.SMTPUser, a.cfg.SMTPPassword, a.cfg.SMTPFrom, a.cfg.FetchTimeout)
	}
	return transports
}

func (a *app) newNotifier() *notify.Dispatcher {
	if !a.transports.Enabled(notify.ChannelChat) {
		a.logger.Warn("[notify] TELEGRAM_TOKEN not set, chat alerts disabled")
	}
	return notify.NewDispatcher(a.transports, a.alerts, a.logger)
}

func (a *app) newTracker(store storage.Store) *services.Tracker {
	return services.NewTracker(services.TrackerDeps{
		Store:    store,
		Prices:   a.prices,
		Pages:    a.resolver,
		Notifier: a.newNotifier(),
		Interval: a.cfg.TrackInterval,
		Logger:   a.logger,
	})
}
