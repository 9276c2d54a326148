// Package table implements the switch's MAC address table: a fixed number
// of slots mapping a station address to the interface it was last seen on.
package table

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"firestige.xyz/lswitch/internal/switching/frame"
)

// DefaultCapacity is the number of stations remembered when no capacity is
// configured.
const DefaultCapacity = 10

var ErrInvalidCapacity = errors.New("table capacity must be at least 1")

// Entry records where a station was last seen.
type Entry struct {
	MAC       frame.MAC
	Interface int
	LastSeen  time.Duration
}

// Action describes what Learn did to the table.
type Action int

const (
	Inserted Action = iota
	Refreshed
	Moved
	Evicted
)

func (a Action) String() string {
	switch a {
	case Inserted:
		return "inserted"
	case Refreshed:
		return "refreshed"
	case Moved:
		return "moved"
	case Evicted:
		return "evicted"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// LearnResult reports the outcome of Learn. Previous holds the entry that
// was overwritten for Moved and Evicted.
type LearnResult struct {
	Action   Action
	Previous Entry
}

// Table is not safe for concurrent use; the forwarding engine owns it.
type Table struct {
	capacity int
	entries  []Entry
}

func New(capacity int) (*Table, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Table{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
	}, nil
}

// Learn records that mac was seen on ifc at now.
//
// A single pass looks for mac's own slot while tracking the oldest slot.
// When mac is new and the table is full, the oldest slot is overwritten;
// among equally old slots the lowest index loses.
func (t *Table) Learn(mac frame.MAC, ifc int, now time.Duration) LearnResult {
	oldest := -1
	for i := range t.entries {
		e := &t.entries[i]
		if e.MAC == mac {
			prev := *e
			e.Interface = ifc
			e.LastSeen = now
			if prev.Interface != ifc {
				return LearnResult{Action: Moved, Previous: prev}
			}
			return LearnResult{Action: Refreshed, Previous: prev}
		}
		if oldest < 0 || e.LastSeen < t.entries[oldest].LastSeen {
			oldest = i
		}
	}

	entry := Entry{MAC: mac, Interface: ifc, LastSeen: now}
	if len(t.entries) < t.capacity {
		t.entries = append(t.entries, entry)
		return LearnResult{Action: Inserted}
	}

	prev := t.entries[oldest]
	t.entries[oldest] = entry
	return LearnResult{Action: Evicted, Previous: prev}
}

// Lookup returns the interface mac was last seen on. It does not refresh
// the entry.
func (t *Table) Lookup(mac frame.MAC) (int, bool) {
	for i := range t.entries {
		if t.entries[i].MAC == mac {
			return t.entries[i].Interface, true
		}
	}
	return 0, false
}

func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) Capacity() int {
	return t.capacity
}

// Entries returns a copy of the table ordered by address.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].MAC[:], out[j].MAC[:]) < 0
	})
	return out
}
