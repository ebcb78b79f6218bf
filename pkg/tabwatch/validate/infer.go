package validate

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// inferSampleSize bounds how many non-empty values per column feed the
// majority vote.
const inferSampleSize = 100

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// classify assigns a single value its most specific type. Precedence:
// number, boolean, date, email, url, string.
func classify(value string) ValueType {
	v := strings.TrimSpace(value)

	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return TypeNumber
	}

	switch strings.ToLower(v) {
	case "true", "false", "yes", "no":
		return TypeBoolean
	}

	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return TypeDate
		}
	}

	if emailPattern.MatchString(v) {
		return TypeEmail
	}

	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		if u, err := url.Parse(v); err == nil && u.Host != "" {
			return TypeURL
		}
	}

	return TypeString
}

// inferColumnType returns the majority classification among the column's
// non-empty sampled values. Ties resolve by type precedence order.
func inferColumnType(values []string) ValueType {
	counts := make(map[ValueType]int)
	sampled := 0
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		counts[classify(v)]++
		sampled++
		if sampled >= inferSampleSize {
			break
		}
	}

	if sampled == 0 {
		return TypeString
	}

	precedence := []ValueType{TypeNumber, TypeBoolean, TypeDate, TypeEmail, TypeURL, TypeString}
	best := TypeString
	bestCount := -1
	for _, t := range precedence {
		if counts[t] > bestCount {
			best = t
			bestCount = counts[t]
		}
	}
	return best
}
