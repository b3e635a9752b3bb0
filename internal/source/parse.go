package source

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/licdata/licmerge/internal/record"
)

// KeyField is the JSON field carrying the entity key in every registry
// response. Records missing it cannot be correlated and are rejected.
const KeyField = "license_number"

// rosterPage is the shape of one bulk roster response.
type rosterPage struct {
	Page     int               `json:"page"`
	Next     bool              `json:"next"`
	Licenses []json.RawMessage `json:"licenses"`
}

// parseFields decodes a flat JSON object into normalized record fields.
// Scalars are stringified; null and nested values are dropped - the
// registry's payloads are flat, and anything else is noise we do not want
// in a CSV cell.
func parseFields(data []byte) (record.Fields, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	fields := make(record.Fields, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = formatNumber(val)
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			// null, arrays, objects: dropped
		}
	}
	return record.NormalizeFields(fields), nil
}

// parseKeyed decodes a record and extracts its entity key.
func parseKeyed(data []byte) (string, record.Fields, error) {
	fields, err := parseFields(data)
	if err != nil {
		return "", nil, err
	}
	key, ok := fields[KeyField]
	if !ok || key == "" {
		return "", nil, fmt.Errorf("record missing %s", KeyField)
	}
	return key, fields, nil
}

// formatNumber renders a JSON number without a float tail when it is
// integral; license numbers and bond amounts arrive as JSON numbers and
// must not grow ".000000" in the output.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
