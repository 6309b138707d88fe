package clock

import (
	"fmt"
	"strconv"
	"strings"
)

// The wire and store form of a delta is a flat map of UTF-8 strings
// keyed by the tracked field names. Times and countdowns travel as
// comma-joined decimal integers. The string form never leaves this
// file: callers work with Delta.

// ParseDelta decodes a wire field map into a typed delta. Unknown keys
// are ignored; a tracked field that fails to parse makes the whole
// delta invalid.
func ParseDelta(fields map[string]string) (Delta, error) {
	var d Delta
	for name, value := range fields {
		var err error
		switch name {
		case FieldTurn:
			d.Turn, err = parseTurn(value)
		case FieldPause:
			d.Pause, err = parseBool(value)
		case FieldNPlayers:
			d.NPlayers, err = parseInt(value)
		case FieldMasterTime:
			d.MasterTime, err = parseInt(value)
		case FieldMasterCountdown:
			d.MasterCountdown, err = parseInt(value)
		case FieldMasterAdditional:
			d.MasterAdditional, err = parseInt(value)
		case FieldTimes:
			d.Times, err = parseInt64List(value)
		case FieldCountdowns:
			d.Countdowns, err = parseInt64List(value)
		}
		if err != nil {
			return Delta{}, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return d, nil
}

// EncodeDelta renders a delta as a wire field map. Absent slots are
// omitted, not emitted as empty strings.
func EncodeDelta(d Delta) map[string]string {
	fields := make(map[string]string)
	if d.Turn != nil {
		fields[FieldTurn] = encodeTurn(*d.Turn)
	}
	if d.Pause != nil {
		fields[FieldPause] = strconv.FormatBool(*d.Pause)
	}
	if d.NPlayers != nil {
		fields[FieldNPlayers] = strconv.Itoa(*d.NPlayers)
	}
	if d.MasterTime != nil {
		fields[FieldMasterTime] = strconv.Itoa(*d.MasterTime)
	}
	if d.MasterCountdown != nil {
		fields[FieldMasterCountdown] = strconv.Itoa(*d.MasterCountdown)
	}
	if d.MasterAdditional != nil {
		fields[FieldMasterAdditional] = strconv.Itoa(*d.MasterAdditional)
	}
	if d.Times != nil {
		fields[FieldTimes] = encodeInt64List(d.Times)
	}
	if d.Countdowns != nil {
		fields[FieldCountdowns] = encodeInt64List(d.Countdowns)
	}
	return fields
}

// NormalizeParams maps a decoded JSON update payload onto the wire
// field form. Only tracked fields are kept; scalars arrive from
// clients as strings, numbers or booleans and are all normalized to
// their string form.
func NormalizeParams(params map[string]any) map[string]string {
	fields := make(map[string]string)
	for _, name := range FieldNames {
		v, ok := params[name]
		if !ok {
			continue
		}
		fields[name] = stringifyScalar(v)
	}
	return fields
}

func stringifyScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func parseTurn(s string) (*int, error) {
	if s == "" {
		turn := NoTurn
		return &turn, nil
	}
	return parseInt(s)
}

func encodeTurn(turn int) string {
	if turn == NoTurn {
		return ""
	}
	return strconv.Itoa(turn)
}

func parseInt(s string) (*int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseBool(s string) (*bool, error) {
	switch strings.TrimSpace(s) {
	case "true", "1":
		b := true
		return &b, nil
	case "false", "0", "":
		b := false
		return &b, nil
	}
	return nil, fmt.Errorf("invalid boolean %q", s)
}

func parseInt64List(s string) ([]int64, error) {
	if s == "" {
		return []int64{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, len(parts))
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func encodeInt64List(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}
