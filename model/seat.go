package model

import (
	"fmt"
	"sort"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatSold      SeatStatus = "SOLD"
)

type Seat struct {
	SeatNumber int        `json:"seatNumber"`
	Status     SeatStatus `json:"status"`
	PriceCents int        `json:"priceCents"`
}

// SeatID identifies a seat by row and number. It is a struct rather than a
// concatenated string so multi-letter rows ("AA") never need re-parsing.
type SeatID struct {
	Row    string
	Number int
}

func (id SeatID) Key() string {
	return fmt.Sprintf("%s%d", id.Row, id.Number)
}

// SeatRef is the wire shape used by reserve and purchase request bodies.
type SeatRef struct {
	RowName    string `json:"rowName"`
	SeatNumber int    `json:"seatNumber"`
}

func (id SeatID) Ref() SeatRef {
	return SeatRef{RowName: id.Row, SeatNumber: id.Number}
}

// ParseSeatKey splits a key like "B12" or "AA3" on the letter/digit
// boundary: one or more uppercase letters followed by one or more digits,
// nothing else.
func ParseSeatKey(key string) (SeatID, error) {
	i := 0
	for i < len(key) && key[i] >= 'A' && key[i] <= 'Z' {
		i++
	}
	if i == 0 {
		return SeatID{}, fmt.Errorf("invalid seat key %q: missing row name", key)
	}
	if i == len(key) {
		return SeatID{}, fmt.Errorf("invalid seat key %q: missing seat number", key)
	}
	number := 0
	for j := i; j < len(key); j++ {
		c := key[j]
		if c < '0' || c > '9' {
			return SeatID{}, fmt.Errorf("invalid seat key %q: unexpected character %q", key, c)
		}
		number = number*10 + int(c-'0')
	}
	return SeatID{Row: key[:i], Number: number}, nil
}

// SeatMap is one event's layout as returned by the backend: row name to
// seats, ordered by seat number ascending. Loaded fresh per visit, never
// persisted.
type SeatMap map[string][]Seat

func (m SeatMap) IsEmpty() bool {
	for _, seats := range m {
		if len(seats) > 0 {
			return false
		}
	}
	return true
}

// RowNames returns the row names sorted for stable rendering.
func (m SeatMap) RowNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// Seat resolves an identifier against the map.
func (m SeatMap) Seat(id SeatID) (Seat, bool) {
	for _, seat := range m[id.Row] {
		if seat.SeatNumber == id.Number {
			return seat, true
		}
	}
	return Seat{}, false
}

// Selection is the set of seats the user is choosing for one event. It
// tracks membership only; seat status stays server-authoritative.
type Selection map[SeatID]struct{}

func NewSelection() Selection {
	return make(Selection)
}

func (s Selection) Contains(id SeatID) bool {
	_, ok := s[id]
	return ok
}

func (s Selection) Add(id SeatID) {
	s[id] = struct{}{}
}

func (s Selection) Remove(id SeatID) {
	delete(s, id)
}

func (s Selection) Len() int {
	return len(s)
}

// IDs returns the selection sorted by row then number, for stable request
// bodies and display.
func (s Selection) IDs() []SeatID {
	ids := make([]SeatID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Row != ids[j].Row {
			if len(ids[i].Row) != len(ids[j].Row) {
				return len(ids[i].Row) < len(ids[j].Row)
			}
			return ids[i].Row < ids[j].Row
		}
		return ids[i].Number < ids[j].Number
	})
	return ids
}

func (s Selection) Refs() []SeatRef {
	ids := s.IDs()
	refs := make([]SeatRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, id.Ref())
	}
	return refs
}

// TotalPriceCents sums the prices of selected seats resolved against the
// current map. Identifiers that no longer resolve (the map was reloaded)
// are skipped.
func TotalPriceCents(selection Selection, seats SeatMap) int {
	total := 0
	for id := range selection {
		if seat, ok := seats.Seat(id); ok {
			total += seat.PriceCents
		}
	}
	return total
}
