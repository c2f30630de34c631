// Package alerting matches alert events against configured rules, suppresses
// repeated faults inside a payload-defined window and queues notifications.
package alerting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

// Threshold is one condition on an event data field. Exactly one of Min,
// OneOf or Equals is meaningful; JSON numbers load as Min, arrays as OneOf and
// anything else as Equals.
type Threshold struct {
	Min    *float64
	OneOf  []any
	Equals any
}

func AtLeast(v float64) Threshold { return Threshold{Min: &v} }

func OneOf(values ...any) Threshold { return Threshold{OneOf: values} }

func Equals(v any) Threshold { return Threshold{Equals: v} }

func (t Threshold) Match(value any) bool {
	switch {
	case t.Min != nil:
		f, ok := toFloat(value)
		return ok && f >= *t.Min
	case t.OneOf != nil:
		for _, candidate := range t.OneOf {
			if equal(value, candidate) {
				return true
			}
		}
		return false
	default:
		return equal(value, t.Equals)
	}
}

func (t Threshold) String() string {
	switch {
	case t.Min != nil:
		return strconv.FormatFloat(*t.Min, 'f', -1, 64)
	case t.OneOf != nil:
		parts := make([]string, len(t.OneOf))
		for i, v := range t.OneOf {
			parts[i] = fmt.Sprint(v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t.Equals)
	}
}

func (t *Threshold) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("threshold %s: %w", v, err)
		}
		*t = AtLeast(f)
	case []any:
		values := make([]any, len(v))
		for i, item := range v {
			values[i] = normalize(item)
		}
		*t = OneOf(values...)
	default:
		*t = Equals(v)
	}
	return nil
}

func (t Threshold) MarshalJSON() ([]byte, error) {
	switch {
	case t.Min != nil:
		return json.Marshal(*t.Min)
	case t.OneOf != nil:
		return json.Marshal(t.OneOf)
	default:
		return json.Marshal(t.Equals)
	}
}

type Rule struct {
	Email      string               `json:"email"`
	EventTypes []domain.EventType   `json:"event_types"`
	Thresholds map[string]Threshold `json:"thresholds"`
}

// Keys returns the threshold keys in a stable order.
func (r Rule) Keys() []string {
	keys := make([]string, 0, len(r.Thresholds))
	for k := range r.Thresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultRules alerts on fault codes 1 through 100 and on speeds of 70 or more.
func DefaultRules() []Rule {
	codes := make([]any, 0, 100)
	for i := 1; i <= 100; i++ {
		codes = append(codes, strconv.Itoa(i))
	}
	return []Rule{
		{
			Email:      "example@gmail.com",
			EventTypes: []domain.EventType{domain.EventFault},
			Thresholds: map[string]Threshold{"fault_code": OneOf(codes...)},
		},
		{
			Email:      "example@gmail.com",
			EventTypes: []domain.EventType{domain.EventGPS},
			Thresholds: map[string]Threshold{"speed": AtLeast(70)},
		},
	}
}

// LoadRules reads a JSON array of rules.
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return rules, nil
}

// Matches reports whether the event satisfies the rule: its type must be
// listed and every threshold key must be present and pass.
func Matches(event domain.AlertEvent, rule Rule) bool {
	typeOK := false
	for _, t := range rule.EventTypes {
		if t == event.EventType {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}

	for key, threshold := range rule.Thresholds {
		value, ok := event.Data[key]
		if !ok || value == nil {
			return false
		}
		if !threshold.Match(value) {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

// equal compares numbers by value and everything else structurally, so "1"
// and 1 differ.
func equal(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa == fb
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}
