package domain

import (
	"math"
	"time"
)

const (
	// MaxPriority — верхняя граница приоритета.
	MaxPriority = 5.0

	// priorityWeekDays — шаг шкалы: каждая неделя до дедлайна снижает приоритет на 1.
	priorityWeekDays = 7.0

	// dependencyBonus — надбавка за наличие хотя бы одной зависимости.
	dependencyBonus = 1.0
)

// ComputePriority вычисляет приоритет задачи в диапазоне [0, 5].
//
//	days  = ceil((deadline - now) / 24h)
//	base  = 5 - clamp(days / 7, 0, 5)
//	score = min(5, base + 1 если есть зависимости)
//
// Просроченные и сегодняшние задачи получают 5, задачи с дедлайном
// через 35 дней и дальше получают 0 (плюс надбавка за зависимости).
func ComputePriority(deadline time.Time, dependencyCount int, now time.Time) float64 {
	days := math.Ceil(deadline.Sub(now).Hours() / 24)

	score := MaxPriority - math.Min(MaxPriority, math.Max(0, days/priorityWeekDays))
	if dependencyCount > 0 {
		score += dependencyBonus
	}

	return math.Min(MaxPriority, score)
}
