package studyplan

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Unspecified is reported for durations that carry no number.
const Unspecified = "unspecified"

var digitsPattern = regexp.MustCompile(`[0-9٠-٩۰-۹]+`)

// ParseStudyDuration extracts the first integer of a free-text duration such
// as "4 سنوات" or "٥ سنوات". ok is false when the text holds no digits.
func ParseStudyDuration(s string) (years int, ok bool) {
	match := digitsPattern.FindString(s)
	if match == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range match {
		switch {
		case r >= '٠' && r <= '٩':
			r = '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			r = '0' + (r - '۰')
		}
		b.WriteRune(r)
	}

	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// Years is a duration in years that may be unknown. It encodes as a JSON
// number, or as "unspecified" when unknown.
type Years struct {
	Value float64
	Known bool
}

func KnownYears(v float64) Years { return Years{Value: v, Known: true} }

// DurationOf parses a free-text duration into Years.
func DurationOf(text string) Years {
	if n, ok := ParseStudyDuration(text); ok {
		return KnownYears(float64(n))
	}
	return Years{}
}

func (y Years) MarshalJSON() ([]byte, error) {
	if !y.Known {
		return json.Marshal(Unspecified)
	}
	return json.Marshal(y.Value)
}

func (y *Years) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*y = Years{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*y = KnownYears(v)
	return nil
}

// AverageYears returns the mean of the known durations, unknown if none is known.
func AverageYears(durations []Years) Years {
	var sum float64
	var n int
	for _, d := range durations {
		if d.Known {
			sum += d.Value
			n++
		}
	}
	if n == 0 {
		return Years{}
	}
	avg := sum / float64(n)
	// one decimal is enough for a portal figure
	avg = float64(int(avg*10+0.5)) / 10
	return KnownYears(avg)
}
