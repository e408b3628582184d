package oddsapi

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/evbets/evboard/internal/domain"
)

// Extraction is the tagged result of probing a value-bets response body.
// An unrecognized body yields Shape ShapeUnrecognized and no items; that is
// not an error.
type Extraction struct {
	Shape domain.FeedShape
	Items []domain.RawQuote
	// Skipped counts array elements that were not quote objects.
	Skipped int
	// RawKeys lists the top-level keys when the body is a JSON object.
	RawKeys []string
}

// Extract probes body for a root array, a "data" array or a "valueBets"
// array, in that order.
func Extract(body []byte) Extraction {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Extraction{Shape: domain.ShapeUnrecognized}
	}

	switch body[0] {
	case '[':
		items, skipped, ok := decodeArray(body)
		if !ok {
			return Extraction{Shape: domain.ShapeUnrecognized}
		}
		return Extraction{Shape: domain.ShapeRootArray, Items: items, Skipped: skipped}

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return Extraction{Shape: domain.ShapeUnrecognized}
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, probe := range []struct {
			key   string
			shape domain.FeedShape
		}{
			{"data", domain.ShapeData},
			{"valueBets", domain.ShapeValueBets},
		} {
			raw, ok := obj[probe.key]
			if !ok {
				continue
			}
			if items, skipped, ok := decodeArray(raw); ok {
				return Extraction{Shape: probe.shape, Items: items, Skipped: skipped, RawKeys: keys}
			}
		}
		return Extraction{Shape: domain.ShapeUnrecognized, RawKeys: keys}
	}

	return Extraction{Shape: domain.ShapeUnrecognized}
}

// decodeArray decodes a JSON array of quote objects, skipping elements that
// are not objects or do not decode. ok is false when raw is not an array.
func decodeArray(raw json.RawMessage) (items []domain.RawQuote, skipped int, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, 0, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, 0, false
	}
	items = make([]domain.RawQuote, 0, len(elems))
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] != '{' {
			skipped++
			continue
		}
		var q domain.RawQuote
		if err := json.Unmarshal(e, &q); err != nil {
			skipped++
			continue
		}
		items = append(items, q)
	}
	return items, skipped, true
}
