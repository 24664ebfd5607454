package promotion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Condition is either a DayWindow or a TimeWindow.
type Condition interface {
	isCondition()
}

type DayWindow struct {
	Days []string
}

type TimeWindow struct {
	Start ClockTime
	End   ClockTime
}

func (DayWindow) isCondition()  {}
func (TimeWindow) isCondition() {}

// ClockTime is a time of day in seconds after midnight.
type ClockTime int

func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime(hour*3600 + minute*60 + second)
}

// ParseClockTime accepts "HH:MM" and "HH:MM:SS".
func ParseClockTime(value string) (ClockTime, error) {
	value = strings.TrimSpace(value)
	layout := "15:04:05"
	if len(value) == 5 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", value, err)
	}
	return NewClockTime(t.Hour(), t.Minute(), t.Second()), nil
}

func ClockOf(t time.Time) ClockTime {
	return NewClockTime(t.Hour(), t.Minute(), t.Second())
}

func (c ClockTime) String() string {
	secs := int(c)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

type rawCondition struct {
	Days      *[]string `json:"days,omitempty"`
	StartTime *string   `json:"startTime,omitempty"`
	EndTime   *string   `json:"endTime,omitempty"`
}

// ParseConditions decodes the stored conditions JSON array. Elements that
// are not a day set or a complete, parseable time range are dropped, and an
// unparseable document yields no conditions.
func ParseConditions(data []byte) []Condition {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil
	}

	out := make([]Condition, 0, len(elements))
	for _, el := range elements {
		var raw rawCondition
		if err := json.Unmarshal(el, &raw); err != nil {
			continue
		}
		if raw.Days != nil {
			days := make([]string, len(*raw.Days))
			copy(days, *raw.Days)
			out = append(out, DayWindow{Days: days})
			continue
		}
		if raw.StartTime != nil && raw.EndTime != nil {
			start, err := ParseClockTime(*raw.StartTime)
			if err != nil {
				continue
			}
			end, err := ParseClockTime(*raw.EndTime)
			if err != nil {
				continue
			}
			out = append(out, TimeWindow{Start: start, End: end})
		}
	}
	return out
}

// MarshalConditions renders conditions in the stored JSON format.
func MarshalConditions(conditions []Condition) ([]byte, error) {
	out := make([]map[string]any, 0, len(conditions))
	for _, c := range conditions {
		switch v := c.(type) {
		case DayWindow:
			days := v.Days
			if days == nil {
				days = []string{}
			}
			out = append(out, map[string]any{"days": days})
		case TimeWindow:
			out = append(out, map[string]any{
				"startTime": v.Start.String(),
				"endTime":   v.End.String(),
			})
		}
	}
	return json.Marshal(out)
}

func firstDayWindow(conditions []Condition) (DayWindow, bool) {
	for _, c := range conditions {
		if v, ok := c.(DayWindow); ok {
			return v, true
		}
	}
	return DayWindow{}, false
}

func firstTimeWindow(conditions []Condition) (TimeWindow, bool) {
	for _, c := range conditions {
		if v, ok := c.(TimeWindow); ok {
			return v, true
		}
	}
	return TimeWindow{}, false
}
