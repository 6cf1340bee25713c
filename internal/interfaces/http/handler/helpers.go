package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

// RangeQuery is a date range with the accepted aliases. Dates are YYYY-MM-DD.
type RangeQuery struct {
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Start    string `form:"start"`
	End      string `form:"end"`
}

// Dates resolves date_from/start and date_to/end. Both are required.
func (q RangeQuery) Dates() (time.Time, time.Time, error) {
	from := firstNonEmpty(q.DateFrom, q.Start)
	to := firstNonEmpty(q.DateTo, q.End)
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, shared.NewDomainError(shared.CodeValidation,
			"date_from (or start) and date_to (or end) are required")
	}
	f, err := businessday.ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := businessday.ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return f, t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseOptionalBool reads "true/false/1/0" and returns nil for an empty value.
func parseOptionalBool(name, raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, shared.InvalidArgumentError("invalid %s %q: expected true or false", name, raw)
	}
	return &b, nil
}

// splitList turns repeated and comma separated values into one trimmed list.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func isValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
