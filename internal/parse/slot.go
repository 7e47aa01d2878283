package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SlotSeparator splits a slot label into its start and end clock values.
const SlotSeparator = " - "

// DateLayout is the layout of booking dates.
const DateLayout = "2006-01-02"

var slotRe = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})\s*$`)

// Slot holds the structured data parsed from a time-slot label such as "09:00 - 10:00".
type Slot struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// Start is the offset of the slot start from midnight.
func (s Slot) Start() time.Duration {
	return time.Duration(s.StartHour)*time.Hour + time.Duration(s.StartMinute)*time.Minute
}

// End is the offset of the slot end from midnight.
func (s Slot) End() time.Duration {
	return time.Duration(s.EndHour)*time.Hour + time.Duration(s.EndMinute)*time.Minute
}

// String renders the slot in its canonical "HH:MM - HH:MM" form.
func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d%s%02d:%02d", s.StartHour, s.StartMinute, SlotSeparator, s.EndHour, s.EndMinute)
}

// ParseSlot extracts start and end clock values from a raw slot label.
func ParseSlot(raw string) (Slot, error) {
	m := slotRe.FindStringSubmatch(raw)
	if m == nil {
		return Slot{}, fmt.Errorf("unable to parse time slot: %q", raw)
	}

	nums := make([]int, 4)
	for i := range nums {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Slot{}, fmt.Errorf("unable to parse time slot %q: %w", raw, err)
		}
		nums[i] = n
	}
	s := Slot{StartHour: nums[0], StartMinute: nums[1], EndHour: nums[2], EndMinute: nums[3]}

	if s.StartHour > 23 || s.EndHour > 24 || s.StartMinute > 59 || s.EndMinute > 59 {
		return Slot{}, fmt.Errorf("time slot out of range: %q", raw)
	}
	if s.End() <= s.Start() {
		return Slot{}, fmt.Errorf("time slot ends before it starts: %q", raw)
	}
	return s, nil
}

// StartToken returns the text before the slot separator, or the whole label
// when there is none. It never fails, so every label lands in some bucket.
func StartToken(raw string) string {
	start, _, _ := strings.Cut(raw, SlotSeparator)
	return start
}

// ParseDate parses a booking date in the given location.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", raw, err)
	}
	return d, nil
}

// SlotBounds combines a booking date and slot label into absolute start and end times.
func SlotBounds(date, slot string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	s, err := ParseSlot(slot)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day.Add(s.Start()), day.Add(s.End()), nil
}

// ValidateSlots checks a configured slot list for parse errors and duplicates.
func ValidateSlots(slots []string) error {
	seen := make(map[string]struct{}, len(slots))
	for _, raw := range slots {
		s, err := ParseSlot(raw)
		if err != nil {
			return err
		}
		key := s.String()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate time slot: %q", raw)
		}
		seen[key] = struct{}{}
	}
	return nil
}
