package availability

import (
	"bytes"
	"iter"
	"sort"
	"time"
)

// Weekday returns 0 for Sunday through 6 for Saturday.
func Weekday(date time.Time) int {
	return int(date.Weekday())
}

// Starts yields start, start+step, ... for every slot that ends no later
// than end.
func Starts(start, end Clock, step int) iter.Seq[Clock] {
	return func(yield func(Clock) bool) {
		if step <= 0 {
			return
		}
		for t := start; t+Clock(step) <= end; t += Clock(step) {
			if !yield(t) {
				return
			}
		}
	}
}

// window parses the stored times. Rows that fail to parse yield no slots.
func (r *Rule) window() (Clock, Clock, bool) {
	start, err := ParseClock(r.StartTime)
	if err != nil {
		return 0, 0, false
	}
	end, err := ParseClock(r.EndTime)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// Starts yields the rule's candidate slot starts.
func (r *Rule) Starts() iter.Seq[Clock] {
	start, end, ok := r.window()
	if !ok {
		return func(func(Clock) bool) {}
	}
	return Starts(start, end, r.SlotDuration)
}

// Offers reports whether t is one of the rule's candidate starts.
func (r *Rule) Offers(t Clock) bool {
	start, end, ok := r.window()
	if !ok || r.SlotDuration <= 0 || t < start || t+Clock(r.SlotDuration) > end {
		return false
	}
	return int(t-start)%r.SlotDuration == 0
}

// Overlaps reports whether the two rules' windows intersect.
func (r *Rule) Overlaps(o *Rule) bool {
	s1, e1, ok1 := r.window()
	s2, e2, ok2 := o.window()
	return ok1 && ok2 && s1 < e2 && s2 < e1
}

// SortRules orders rules by start time, then creation time, then id. This
// is the evaluation order used for derivation and booking.
func SortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		as, _, _ := a.window()
		bs, _, _ := b.window()
		if as != bs {
			return as < bs
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

// MatchRule returns the first active rule, in evaluation order, that offers
// a slot starting at t.
func MatchRule(rules []*Rule, t Clock) *Rule {
	ordered := append([]*Rule(nil), rules...)
	SortRules(ordered)
	for _, r := range ordered {
		if r.IsActive && r.Offers(t) {
			return r
		}
	}
	return nil
}

// Derive expands the active rules of one day into slots. booked maps an
// "HH:MM" start to the number of pending or confirmed appointments there.
// Overlapping rules each contribute their own slots with their own
// capacity; the result is ordered by start time, ties in rule order.
func Derive(rules []*Rule, booked map[string]int) []Slot {
	ordered := append([]*Rule(nil), rules...)
	SortRules(ordered)

	slots := []Slot{}
	for _, r := range ordered {
		if !r.IsActive {
			continue
		}
		for t := range r.Starts() {
			key := t.String()
			n := booked[key]
			slots = append(slots, Slot{
				StartTime:   key,
				EndTime:     (t + Clock(r.SlotDuration)).String(),
				IsAvailable: n < r.MaxPatients,
				BookedCount: n,
				MaxPatients: r.MaxPatients,
				RuleID:      r.ID,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots
}
