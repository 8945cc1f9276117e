package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
)

// Period is the length of a report window.
type Period string

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// ParsePeriod maps a query value to a Period, falling back to Monthly.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case Weekly, Yearly:
		return Period(s)
	}
	return Monthly
}

// Window is a half-open time range [Start, End) anchored to a moment.
type Window struct {
	Period Period
	Start  time.Time
	End    time.Time
	Title  string
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WindowFor returns the calendar week (Monday first), month or year that
// contains now, in now's location.
func WindowFor(p Period, now time.Time) Window {
	y, m, d := now.Date()
	loc := now.Location()

	switch p {
	case Weekly:
		offset := (int(now.Weekday()) + 6) % 7
		start := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		end := start.AddDate(0, 0, 7)
		return Window{
			Period: Weekly,
			Start:  start,
			End:    end,
			Title:  fmt.Sprintf("This Week (%s - %s)", start.Format("Jan 02"), end.AddDate(0, 0, -1).Format("Jan 02")),
		}
	case Yearly:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return Window{
			Period: Yearly,
			Start:  start,
			End:    start.AddDate(1, 0, 0),
			Title:  fmt.Sprintf("This Year (%d)", y),
		}
	default:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return Window{
			Period: Monthly,
			Start:  start,
			End:    start.AddDate(0, 1, 0),
			Title:  now.Format("January 2006"),
		}
	}
}

// Bucket is one point of the report series.
type Bucket struct {
	Label   string          `json:"label"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
}

// Report summarizes a scope's ledger over a window.
type Report struct {
	Title            string          `json:"reportTitle"`
	Period           Period          `json:"period"`
	Start            time.Time       `json:"startDate"`
	End              time.Time       `json:"endDate"`
	TotalInflow      decimal.Decimal `json:"totalInflow"`
	TotalOutflow     decimal.Decimal `json:"totalOutflow"`
	NetPosition      decimal.Decimal `json:"netPosition"`
	TransactionCount int             `json:"transactionCount"`
	Buckets          []Bucket        `json:"perBucketSeries"`
}

var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Aggregate folds the transactions that fall inside w into a Report.
// It has no side effects: the same input always yields the same report.
func Aggregate(txns []*models.Transaction, w Window) Report {
	buckets := emptyBuckets(w)
	report := Report{
		Title:        w.Title,
		Period:       w.Period,
		Start:        w.Start,
		End:          w.End,
		TotalInflow:  decimal.Zero,
		TotalOutflow: decimal.Zero,
	}

	loc := w.Start.Location()
	for _, tx := range txns {
		at := tx.CreatedAt.In(loc)
		if !w.Contains(at) {
			continue
		}
		i := bucketIndex(w.Period, at)
		switch tx.Type {
		case models.Income:
			report.TotalInflow = report.TotalInflow.Add(tx.Amount)
			buckets[i].Inflow = buckets[i].Inflow.Add(tx.Amount)
		case models.Expense:
			report.TotalOutflow = report.TotalOutflow.Add(tx.Amount)
			buckets[i].Outflow = buckets[i].Outflow.Add(tx.Amount)
		default:
			continue
		}
		report.TransactionCount++
	}

	report.NetPosition = report.TotalInflow.Sub(report.TotalOutflow)
	report.Buckets = buckets
	return report
}

// Balance returns total income minus total expenses.
func Balance(txns []*models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txns {
		total = total.Add(tx.Signed())
	}
	return total
}

func emptyBuckets(w Window) []Bucket {
	var labels []string
	switch w.Period {
	case Weekly:
		labels = weekdayLabels
	case Yearly:
		for m := time.January; m <= time.December; m++ {
			labels = append(labels, m.String()[:3])
		}
	default:
		days := w.End.AddDate(0, 0, -1).Day()
		for d := 1; d <= days; d++ {
			labels = append(labels, strconv.Itoa(d))
		}
	}

	buckets := make([]Bucket, len(labels))
	for i, l := range labels {
		buckets[i] = Bucket{Label: l, Inflow: decimal.Zero, Outflow: decimal.Zero}
	}
	return buckets
}

func bucketIndex(p Period, t time.Time) int {
	switch p {
	case Weekly:
		return (int(t.Weekday()) + 6) % 7
	case Yearly:
		return int(t.Month()) - 1
	default:
		return t.Day() - 1
	}
}
