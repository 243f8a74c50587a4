package acis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind selects the observation row layout.
type Kind string

const (
	KindDaily   Kind = "daily"
	KindMonthly Kind = "monthly"
)

// ParseKind accepts "daily" or "monthly"; empty means daily.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindDaily:
		return KindDaily, nil
	case KindMonthly:
		return KindMonthly, nil
	default:
		return "", fmt.Errorf("unknown observation kind %q", s)
	}
}

// Observation is one row of station data. Daily rows carry quality flags;
// monthly rows carry the number of missing days.
type Observation struct {
	kind         Kind
	date         string
	value        string
	acisFlag     string
	sourceFlag   string
	missingCount int
}

// Kind reports whether the row is daily or monthly.
func (o Observation) Kind() Kind { return o.kind }

// Date is YYYY-MM-DD for daily rows and YYYY-MM for monthly rows.
func (o Observation) Date() string { return o.date }

// Month is an alias of Date for monthly rows.
func (o Observation) Month() string { return o.date }

// Value is the reported value as text, MissingValue when blank.
func (o Observation) Value() string { return o.value }

// ACISFlag is the ACIS quality flag of a daily value.
func (o Observation) ACISFlag() string { return o.acisFlag }

// SourceFlag is the quality flag assigned by the originating network.
func (o Observation) SourceFlag() string { return o.sourceFlag }

// MissingCount is the number of missing days in a monthly value.
func (o Observation) MissingCount() int { return o.missingCount }

// IsMissing reports whether the value is the missing sentinel.
func (o Observation) IsMissing() bool { return o.value == MissingValue }

// Float64 parses the value. Sentinels and service codes such as "M" or "T"
// are not numbers.
func (o Observation) Float64() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(o.value), 64)
	return f, err == nil
}

// ToMap converts the observation to a generic mapping.
func (o Observation) ToMap() map[string]any {
	if o.kind == KindMonthly {
		return map[string]any{
			"date":         o.date,
			"wxOb":         o.value,
			"countMissing": o.missingCount,
		}
	}
	return map[string]any{
		"date":       o.date,
		"wxOb":       o.value,
		"ACIS_Flag":  o.acisFlag,
		"sourceFlag": o.sourceFlag,
	}
}

// MarshalJSON implements json.Marshaler.
func (o Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.ToMap())
}

// ToObservations maps data rows of the given kind. Blank text fields become
// MissingValue; the monthly missing count is kept as given.
func ToObservations(rows [][]any, kind Kind) ([]Observation, error) {
	obs := make([]Observation, 0, len(rows))
	for i, row := range rows {
		fields := flattenRow(row)

		var o Observation
		switch kind {
		case KindDaily:
			if err := requireFields(i, fields, "date", "value", "acis_flag", "source_flag"); err != nil {
				return nil, err
			}
			o = Observation{
				kind:       KindDaily,
				date:       normalizeBlank(fields[0]),
				value:      normalizeBlank(fields[1]),
				acisFlag:   normalizeBlank(fields[2]),
				sourceFlag: normalizeBlank(fields[3]),
			}
		case KindMonthly:
			if err := requireFields(i, fields, "date", "value", "count_missing"); err != nil {
				return nil, err
			}
			count, ok := toInt64(fields[2])
			if !ok {
				return nil, &MalformedRecordError{Row: i, Field: "count_missing"}
			}
			o = Observation{
				kind:         KindMonthly,
				date:         normalizeBlank(fields[0]),
				value:        normalizeBlank(fields[1]),
				missingCount: int(count),
			}
		default:
			return nil, fmt.Errorf("unknown observation kind %q", kind)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// flattenRow expands the nested [date, [value, flag, ...]] layout.
func flattenRow(row []any) []any {
	out := make([]any, 0, len(row)+3)
	for _, v := range row {
		if nested, ok := v.([]any); ok {
			out = append(out, nested...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// requireFields checks that a row has exactly one field per name.
func requireFields(row int, fields []any, names ...string) error {
	if len(fields) < len(names) {
		return &MalformedRecordError{Row: row, Field: names[len(fields)]}
	}
	if len(fields) > len(names) {
		return &MalformedRecordError{Row: row, Field: "width"}
	}
	return nil
}

func normalizeBlank(v any) string {
	s := toText(v)
	if strings.TrimSpace(s) == "" {
		return MissingValue
	}
	return s
}

func toText(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case json.Number:
		return tv.String()
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case bool:
		return strconv.FormatBool(tv)
	default:
		return fmt.Sprint(tv)
	}
}
