package notify

import (
	"fmt"
	"time"
)

// FormatPrice форматирует цену из центов в доллары
func FormatPrice(priceInCents int) string {
	return fmt.Sprintf("$%d.%02d", priceInCents/100, priceInCents%100)
}

// FormatDate форматирует дату с днём недели
func FormatDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("3:04 PM"), end.Format("3:04 PM"))
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}
