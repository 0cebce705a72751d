package inventory

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

const (
	daysPerMonth      = 30
	projectionDays    = 30
	noConsumptionDays = 999
)

var (
	minRecommended  = decimal.RequireFromString("0.1")
	mediumThreshold = decimal.RequireFromString("1.5")
)

type Recommendation struct {
	SupplyItemID      uuid.UUID       `json:"supply_item_id"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	Current           decimal.Decimal `json:"current"`
	Minimum           decimal.Decimal `json:"minimum"`
	DailyConsumption  decimal.Decimal `json:"daily_consumption"`
	ProjectedMonthly  decimal.Decimal `json:"projected_30_days"`
	RecommendedQty    decimal.Decimal `json:"recommended_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	EstimatedCost     decimal.Decimal `json:"estimated_cost"`
	Urgency           string          `json:"urgency"`
	DaysOfStockRemain decimal.Decimal `json:"days_remaining"`
}

type RecommendationSummary struct {
	Items        int             `json:"items"`
	TotalCost    decimal.Decimal `json:"total_estimated_cost"`
	UrgentItems  int             `json:"urgent_items"`
	AnalysisDays int             `json:"analysis_days"`
	AnalysisDate time.Time       `json:"analysis_date"`
}

type RecommendationReport struct {
	Recommendations []Recommendation      `json:"recommendations"`
	Summary         RecommendationSummary `json:"summary"`
}

// WindowStart returns the start of the consumption window for months.
func WindowStart(now time.Time, months int) time.Time {
	return now.AddDate(0, 0, -months*daysPerMonth)
}

// Recommend projects 30-day consumption from consumed (total "out" per
// supply item over the window) and suggests what to buy. Inactive items
// are skipped.
func Recommend(items []database.SupplyItem, consumed map[uuid.UUID]decimal.Decimal, months int, now time.Time) RecommendationReport {
	days := months * daysPerMonth
	if days < 1 {
		days = 1
	}
	dayCount := decimal.NewFromInt(int64(days))

	recs := []Recommendation{}
	total := decimal.Zero
	urgent := 0
	for _, item := range items {
		if !item.IsActive {
			continue
		}
		daily := consumed[item.ID].Div(dayCount)
		projected := daily.Mul(decimal.NewFromInt(projectionDays))
		recommended := projected.Add(item.MinQuantity).Sub(item.Quantity)
		if !recommended.GreaterThan(minRecommended) {
			continue
		}

		remaining := decimal.NewFromInt(noConsumptionDays)
		if daily.IsPositive() {
			remaining = item.Quantity.Div(daily)
		}
		cost := recommended.Mul(item.UnitCost)
		urgency := urgencyOf(item.Quantity, item.MinQuantity)
		if urgency == enum.UrgencyHigh {
			urgent++
		}
		total = total.Add(cost)

		recs = append(recs, Recommendation{
			SupplyItemID:      item.ID,
			Name:              item.Name,
			Unit:              item.Unit,
			Current:           item.Quantity,
			Minimum:           item.MinQuantity,
			DailyConsumption:  daily.Round(2),
			ProjectedMonthly:  projected.Round(2),
			RecommendedQty:    recommended.Round(2),
			UnitCost:          item.UnitCost,
			EstimatedCost:     cost.Round(2),
			Urgency:           urgency,
			DaysOfStockRemain: remaining.Round(1),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := urgencyRank(recs[i].Urgency), urgencyRank(recs[j].Urgency)
		if ri != rj {
			return ri < rj
		}
		return recs[i].RecommendedQty.GreaterThan(recs[j].RecommendedQty)
	})

	return RecommendationReport{
		Recommendations: recs,
		Summary: RecommendationSummary{
			Items:        len(recs),
			TotalCost:    total.Round(2),
			UrgentItems:  urgent,
			AnalysisDays: days,
			AnalysisDate: now,
		},
	}
}

func urgencyOf(current, minimum decimal.Decimal) string {
	switch {
	case current.LessThanOrEqual(minimum):
		return enum.UrgencyHigh
	case current.LessThanOrEqual(minimum.Mul(mediumThreshold)):
		return enum.UrgencyMedium
	default:
		return enum.UrgencyLow
	}
}

func urgencyRank(u string) int {
	switch u {
	case enum.UrgencyHigh:
		return 0
	case enum.UrgencyMedium:
		return 1
	default:
		return 2
	}
}
