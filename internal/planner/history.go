package planner

import "strings"

// recentWindow is the trailing-item memory used by the variety rule: six
// meals of food plus beverage.
const recentWindow = 12

type slotKey struct {
	day  int
	meal int
}

type slotEntry struct {
	food     string
	beverage string
}

// history tracks what a crew member was already served so the repeat rules
// can be checked per candidate. One history serves one crew member's run.
type history struct {
	lastFood     string
	lastBeverage string
	bySlot       map[slotKey]slotEntry
	recent       []string
}

func newHistory() *history {
	return &history{bySlot: make(map[slotKey]slotEntry)}
}

// Strictness levels for selection. Relaxation drops the variety rules one at
// a time; an immediate repeat is never allowed. Foods and beverages follow
// the same three rules.
const (
	strictFull = iota
	strictNoRecency
	strictImmediateOnly
)

func (h *history) foodAllowed(name string, day, meal, strictness int) bool {
	return h.allowed(name, h.lastFood, h.bySlot[slotKey{day - 1, meal}].food, strictness)
}

func (h *history) beverageAllowed(name string, day, meal, strictness int) bool {
	return h.allowed(name, h.lastBeverage, h.bySlot[slotKey{day - 1, meal}].beverage, strictness)
}

func (h *history) allowed(name, last, prevDaySlot string, strictness int) bool {
	if strings.EqualFold(name, last) {
		return false
	}
	if strictness <= strictNoRecency && strings.EqualFold(name, prevDaySlot) {
		return false
	}
	if strictness == strictFull {
		for _, served := range h.recent {
			if strings.EqualFold(name, served) {
				return false
			}
		}
	}
	return true
}

func (h *history) record(day, meal int, food, beverage string) {
	h.lastFood = food
	h.lastBeverage = beverage
	h.bySlot[slotKey{day, meal}] = slotEntry{food: food, beverage: beverage}
	h.recent = append(h.recent, food, beverage)
	if len(h.recent) > recentWindow {
		h.recent = h.recent[len(h.recent)-recentWindow:]
	}
}
