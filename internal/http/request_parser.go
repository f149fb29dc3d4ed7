package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"estatecrm/internal/amortization"
	"estatecrm/internal/core"
)

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]any)
		dec := json.NewDecoder(bytes.NewReader(p.body))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("decode body: %v: %w", err, errBadRequest)
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	if p.formData, p.err = url.ParseQuery(string(p.body)); p.err != nil {
		p.err = fmt.Errorf("decode form: %v: %w", p.err, errBadRequest)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

const maxBodyBytes = 1 << 20

// ParseTerms reads loan terms from a calculator or loan form. Amount and
// rate strings may use a decimal comma. A missing start date means today.
func ParseTerms(p *RequestBodyParser, today time.Time) (amortization.Terms, error) {
	var t amortization.Terms

	principal, err := parseDecimal(p.Get("principal"))
	if err != nil {
		return t, fmt.Errorf("%w: principal %q", amortization.ErrInvalidAmount, p.Get("principal"))
	}
	rate, err := parseDecimal(strings.TrimSuffix(p.Get("annual_rate"), "%"))
	if err != nil {
		return t, fmt.Errorf("%w: annual rate %q", amortization.ErrInvalidRate, p.Get("annual_rate"))
	}
	term, err := strconv.Atoi(p.Get("term_periods"))
	if err != nil {
		return t, fmt.Errorf("%w: term %q", amortization.ErrInvalidTerm, p.Get("term_periods"))
	}
	freq := amortization.Monthly
	if v := p.Get("frequency"); v != "" {
		if freq, err = amortization.ParseFrequency(v); err != nil {
			return t, err
		}
	}
	start := core.DateOf(today)
	if v := p.Get("start_date"); v != "" {
		if start, err = core.ParseDate(v); err != nil {
			return t, err
		}
	}

	return amortization.Terms{
		Principal:   principal,
		AnnualRate:  rate,
		TermPeriods: term,
		Frequency:   freq,
		StartDate:   start.Time,
	}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, errBadRequest
	}
	return decimal.NewFromString(s)
}

// decodeJSON reads a JSON body into v, refusing unknown fields and bodies
// over maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if core.IsValidationError(err) {
			return err
		}
		return fmt.Errorf("decode body: %v: %w", err, errBadRequest)
	}
	return nil
}
