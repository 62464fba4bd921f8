package optimization

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var priceColumns = map[string][]string{
	"ticker": {"ticker", "symbol"},
	"date":   {"date"},
	"price":  {"adjusted_close", "adj_close", "adjclose", "close"},
}

// ReadPanelCSV reads a long-format price panel with a header naming ticker,
// date and adjusted close columns in any order.
func ReadPanelCSV(r io.Reader) (PricePanel, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	// Earlier aliases win, so adjusted close is preferred over close.
	cols := make(map[string]int)
	for key, aliases := range priceColumns {
		for _, alias := range aliases {
			if i, ok := index[alias]; ok {
				cols[key] = i
				break
			}
		}
		if _, ok := cols[key]; !ok {
			return nil, fmt.Errorf("missing %s column in header %v", key, header)
		}
	}

	var panel PricePanel
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		price := math.NaN()
		if raw := strings.TrimSpace(record[cols["price"]]); raw != "" {
			if price, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid price %q: %w", line, raw, err)
			}
		}
		panel = append(panel, PriceRow{
			Ticker:   strings.TrimSpace(record[cols["ticker"]]),
			Date:     strings.TrimSpace(record[cols["date"]]),
			AdjClose: price,
		})
	}

	return panel, nil
}
