package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxDurationMinutes bounds the meeting length accepted on query strings.
const MaxDurationMinutes = 480

var (
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrInvalidDuration = errors.New("invalid duration")
	errTrailingData    = errors.New("body must contain a single JSON object")
)

// DecodeJSON decodes exactly one JSON object and rejects unknown fields.
func DecodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errTrailingData
	}
	return nil
}

// ValidationDetails maps each failing JSON field to the tag it failed.
func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

// ParseLimit reads ?limit=, defaulting to def and capping at max.
func ParseLimit(values url.Values, def, max int64) (int64, error) {
	raw := strings.TrimSpace(values.Get("limit"))
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		return 0, ErrInvalidLimit
	}
	return min(limit, max), nil
}

// ParseDuration reads a meeting duration in minutes; empty yields fallback.
func ParseDuration(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := strconv.Atoi(raw)
	if err != nil || d <= 0 || d > MaxDurationMinutes {
		return 0, ErrInvalidDuration
	}
	return d, nil
}
