package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

// ReportCurrency is the currency price statistics are computed in. Listings
// priced in other currencies are counted but not averaged.
const ReportCurrency = "TRY"

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate folds per-user run summaries and the discovered listings into one
// report.
func (s *InsightService) Generate(runs []*models.MonitorRun, discoveries []models.Discovery) *models.RunReport {
	report := &models.RunReport{
		Currency:   ReportCurrency,
		ByPortal:   make(map[models.Portal]int),
		ByDistrict: make(map[string]int),
	}

	for _, r := range runs {
		report.Users++
		if r.Errors > 0 && r.SearchesRun == 0 {
			report.FailedUsers++
		}
		report.Criteria += r.CriteriaCount
		report.SearchesRun += r.SearchesRun
		report.SearchesFailed += r.SearchesFailed
		report.PreviewsFound += r.PreviewsFound
		report.NotificationsOK += r.NotificationsOK
	}

	report.NewListings = len(discoveries)
	if len(discoveries) == 0 {
		return report
	}

	var total float64
	for i := range discoveries {
		d := &discoveries[i]
		report.ByPortal[d.Portal]++
		if district := d.Preview.Location.District; district != "" {
			report.ByDistrict[district]++
		}

		price := d.Preview.Price
		if price.Amount <= 0 || price.Currency != ReportCurrency {
			continue
		}
		if report.PricedCount == 0 || price.Amount < report.MinPrice {
			report.MinPrice = price.Amount
		}
		if price.Amount > report.MaxPrice {
			report.MaxPrice = price.Amount
			report.MostExpensive = d
		}
		total += price.Amount
		report.PricedCount++
	}

	if report.PricedCount > 0 {
		report.AveragePrice = round2(total / float64(report.PricedCount))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 MONITORING RUN REPORT\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Users scanned          : \033[1m%d\033[0m (%d failed)\n", r.Users, r.FailedUsers)
	fmt.Fprintf(w, "  Criteria               : \033[1m%d\033[0m\n", r.Criteria)
	fmt.Fprintf(w, "  Searches run / failed  : \033[1m%d\033[0m / %d\n", r.SearchesRun, r.SearchesFailed)
	fmt.Fprintf(w, "  Previews read          : \033[1m%d\033[0m\n", r.PreviewsFound)
	fmt.Fprintf(w, "  New listings           : \033[1m%d\033[0m\n", r.NewListings)
	fmt.Fprintf(w, "  Notifications sent     : \033[1m%d\033[0m\n", r.NotificationsOK)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics (%s, new listings)\033[0m\n", r.Currency)
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedCount > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%s\033[0m\n", formatAmount(r.AveragePrice))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%s\033[0m\n", formatAmount(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%s\033[0m\n", formatAmount(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		p := r.MostExpensive.Preview
		fmt.Fprintf(w, "\033[1;33m  Most Expensive New Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(p.Title, 50))
		fmt.Fprintf(w, "  Portal   : %s\n", r.MostExpensive.Portal)
		fmt.Fprintf(w, "  Location : %s\n", strings.TrimPrefix(p.Location.District+", "+p.Location.City, ", "))
		fmt.Fprintf(w, "  Price    : \033[1;31m%s %s\033[0m\n", formatAmount(p.Price.Amount), p.Price.Currency)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  New Listings by Portal\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	printCounts(w, portalCounts(r.ByPortal), "No new listings")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  New Listings by District\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	printCounts(w, r.ByDistrict, "No location data")

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func portalCounts(m map[models.Portal]int) map[string]int {
	out := make(map[string]int, len(m))
	for p, n := range m {
		out[string(p)] = n
	}
	return out
}

func printCounts(w io.Writer, counts map[string]int, empty string) {
	if len(counts) == 0 {
		fmt.Fprintf(w, "  %s\n", empty)
		return
	}

	type keyCount struct {
		key   string
		count int
	}
	var rows []keyCount
	for k, n := range counts {
		rows = append(rows, keyCount{k, n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, kc := range rows {
		bar := strings.Repeat("█", kc.count)
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(kc.key, 28), bar, kc.count)
	}
}

func formatAmount(f float64) string {
	s := fmt.Sprintf("%.0f", f)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
