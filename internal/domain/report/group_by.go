package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/shared"
)

// GroupBy selects the period a profit summary is bucketed into.
type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
	GroupByTotal GroupBy = "total"
)

// TotalKey is the single bucket key used for GroupByTotal.
const TotalKey = "total"

// ParseGroupBy validates a group_by parameter. An empty value means day.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GroupByDay, nil
	case GroupByDay, GroupByWeek, GroupByMonth, GroupByTotal:
		return g, nil
	default:
		return "", shared.InvalidArgumentError("unknown group_by %q: expected day, week, month or total", s)
	}
}

// Key returns the bucket key of a business date: YYYY-MM-DD, YYYY-Www (ISO week),
// YYYY-MM or "total". Keys of one GroupBy sort chronologically as strings.
func (g GroupBy) Key(date time.Time) string {
	switch g {
	case GroupByDay:
		return date.Format(businessday.DateLayout)
	case GroupByWeek:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GroupByMonth:
		return fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month()))
	default:
		return TotalKey
	}
}
