package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"pricehound/models"
	"pricehound/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises an aggregated search. Backends are reported in name order.
func (s *InsightService) Generate(query string, result models.AggregatedResult) *models.InsightReport {
	report := &models.InsightReport{Query: query}

	names := make([]string, 0, len(result))
	for name := range result {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		listings := result[name]
		if len(listings) == 0 {
			report.EmptyBackends = append(report.EmptyBackends, name)
			continue
		}

		stats := models.BackendStats{
			Backend:  name,
			Count:    len(listings),
			MinPrice: listings[0].Price,
			MaxPrice: listings[0].Price,
		}
		total := decimal.Zero
		for _, l := range listings {
			total = total.Add(l.Price)
			if l.Price.LessThan(stats.MinPrice) {
				stats.MinPrice = l.Price
			}
			if l.Price.GreaterThan(stats.MaxPrice) {
				stats.MaxPrice = l.Price
			}
			if report.Cheapest == nil || l.Price.LessThan(report.Cheapest.Price) {
				report.Cheapest = l
			}
		}
		stats.AvgPrice = total.Div(decimal.NewFromInt(int64(len(listings)))).Round(2)

		report.TotalListings += stats.Count
		report.PerBackend = append(report.PerBackend, stats)
	}

	s.logger.Debug("[insights] %d listings across %d backends", report.TotalListings, len(report.PerBackend))
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 58)
	thin := strings.Repeat("─", 58)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🔎 PRICE COMPARISON: %s\033[0m\n", truncate(r.Query, 40))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings : \033[1m%d\033[0m\n", r.TotalListings)
	if len(r.EmptyBackends) > 0 {
		fmt.Fprintf(w, "  No results     : %s\n", strings.Join(r.EmptyBackends, ", "))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Prices by marketplace (₽)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.PerBackend) == 0 {
		fmt.Fprintf(w, "  No price data available\n")
	}
	for _, b := range r.PerBackend {
		fmt.Fprintf(w, "  %-16s %4d items   min \033[1;32m%s\033[0m   avg %s   max %s\n",
			b.Backend, b.Count, b.MinPrice.StringFixed(0), b.AvgPrice.StringFixed(2), b.MaxPrice.StringFixed(0))
	}
	fmt.Fprintln(w)

	if r.Cheapest != nil {
		fmt.Fprintf(w, "\033[1;33m  Cheapest offer\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.Cheapest.Title, 54))
		fmt.Fprintf(w, "  Marketplace : %s\n", r.Cheapest.Backend)
		fmt.Fprintf(w, "  Price       : \033[1;32m%s ₽\033[0m\n", r.Cheapest.Price.StringFixed(2))
		fmt.Fprintf(w, "  Link        : %s\n", r.Cheapest.Link)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
