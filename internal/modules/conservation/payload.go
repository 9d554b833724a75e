package conservation

import (
	"encoding/json"
	"fmt"
)

// ValidatePayload validates a loosely-typed scenario payload (e.g. decoded
// JSON). A payload that cannot be coerced into a Scenario is not an error to
// propagate: it becomes a single explicit veto reason and is counted in the
// rejection statistics like any other violation.
func (v *Validator) ValidatePayload(payload map[string]any) Record {
	s, err := ParseScenario(payload)
	if err != nil {
		v.record([]string{ReasonMalformed})
		return Record{
			Passed:  false,
			Reasons: []string{fmt.Sprintf("malformed scenario payload: %v", err)},
		}
	}
	return v.Validate(s)
}

// ParseScenario coerces a map payload into a typed Scenario.
func ParseScenario(payload map[string]any) (Scenario, error) {
	var s Scenario
	var err error

	if s.LapsLed, err = floatSliceField(payload, "laps_led"); err != nil {
		return Scenario{}, err
	}
	if s.FastestLaps, err = floatSliceField(payload, "fastest_laps"); err != nil {
		return Scenario{}, err
	}
	if s.StartPositions, err = floatSliceField(payload, "start_positions"); err != nil {
		return Scenario{}, err
	}
	if s.FinishPositions, err = floatSliceField(payload, "finish_positions"); err != nil {
		return Scenario{}, err
	}
	if s.RaceLength, err = floatField(payload, "race_length"); err != nil {
		return Scenario{}, err
	}
	if s.GreenFlagLaps, err = floatField(payload, "green_flag_laps"); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

func floatField(payload map[string]any, key string) (float64, error) {
	raw, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	v, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return v, nil
}

func floatSliceField(payload map[string]any, key string) ([]float64, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	switch vals := raw.(type) {
	case []float64:
		return vals, nil
	case []any:
		out := make([]float64, len(vals))
		for i, item := range vals {
			v, err := toFloat(item)
			if err != nil {
				return nil, fmt.Errorf("field %q[%d]: %w", key, i, err)
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: expected numeric array, got %T", key, raw)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}
