package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01/02/06",
	"02-01-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseResponse turns a model reply into ReceiptData. Replies without a JSON
// object are treated as raw receipt text.
func parseResponse(text string) (*ReceiptData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		data := ParseReceiptText(text)
		if data.empty() {
			return nil, fmt.Errorf("no receipt data found in response")
		}
		return data, nil
	}

	var data ReceiptData
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	data.normalize()
	return &data, nil
}

// normalize cleans up scanner output so every field is either usable or empty
func (d *ReceiptData) normalize() {
	d.Store = strings.TrimSpace(d.Store)
	d.Date = normalizeDate(d.Date)

	items := d.Items[:0]
	for _, item := range d.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" || item.Price < 0 {
			continue
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		item.Price = roundCents(item.Price)
		items = append(items, item)
	}
	d.Items = items

	if d.Total < 0 {
		d.Total = 0
	}
	d.Total = roundCents(d.Total)
}

func (d *ReceiptData) empty() bool {
	return d.Store == "" && d.Date == "" && len(d.Items) == 0 && d.Total == 0
}

// normalizeDate returns value as YYYY-MM-DD, or "" when it cannot be read
func normalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
