package http

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"estatecrm/internal/core"
	"estatecrm/internal/crm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// parseFilter reads status, client_id, loan_id, limit and offset from the
// query string. A malformed number is a bad request.
func parseFilter(q url.Values) (crm.Filter, error) {
	f := crm.Filter{
		Status:   sanitizeInput(q.Get("status")),
		ClientID: sanitizeInput(q.Get("client_id")),
		LoanID:   sanitizeInput(q.Get("loan_id")),
		Limit:    defaultPageSize,
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("limit %q: %w", v, errBadRequest)
		}
		f.Limit = min(n, maxPageSize)
	}
	if v := strings.TrimSpace(q.Get("offset")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("offset %q: %w", v, errBadRequest)
		}
		f.Offset = n
	}
	return f, nil
}

// queryBool reads a boolean query flag; anything unparsable is false.
func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// formatMoney renders an amount with thousands separators, e.g. "8,606.64".
func formatMoney(v any) string {
	var d decimal.Decimal
	switch m := v.(type) {
	case core.Money:
		d = m.Decimal()
	case decimal.Decimal:
		d = m
	case int64:
		d = decimal.New(m, -2)
	default:
		return fmt.Sprint(v)
	}
	f, _ := d.Round(2).Float64()
	return humanize.FormatFloat("#,###.##", f)
}

// formatDate renders dates as YYYY-MM-DD.
func formatDate(v any) string {
	switch d := v.(type) {
	case core.Date:
		return d.String()
	case time.Time:
		if d.IsZero() {
			return ""
		}
		return d.Format("2006-01-02")
	default:
		return fmt.Sprint(v)
	}
}

// templateFuncs are available to every page template.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":   formatMoney,
		"date":    formatDate,
		"ago":     humanize.Time,
		"comma":   func(n int) string { return humanize.Comma(int64(n)) },
		"ordinal": humanize.Ordinal,
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + strings.ReplaceAll(s[1:], "-", " ")
		},
	}
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
