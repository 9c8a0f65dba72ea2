package models

import "time"

// Идентификаторы тарифов.
const (
	PlanOneMonth    = "1_month"
	PlanThreeMonths = "3_months"
	PlanSixMonths   = "6_months"
	PlanTwelveMonth = "12_months"
)

const day = 24 * time.Hour

var planDurations = map[string]time.Duration{
	PlanOneMonth:    30 * day,
	PlanThreeMonths: 90 * day,
	PlanSixMonths:   180 * day,
	PlanTwelveMonth: 365 * day,
}

// PlanDuration возвращает длительность тарифа; ok == false для неизвестного тарифа.
func PlanDuration(plan string) (time.Duration, bool) {
	d, ok := planDurations[plan]
	return d, ok
}
