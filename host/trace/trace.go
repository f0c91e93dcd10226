// Package trace parses the timing-ring dumps printed by the firmware and
// summarizes them.
//
// A dump is a block of lines:
//
//	[TIMING] === Timing Ring Dump ===
//	[TIMING] ARM axis=- clock=123456 v1=12 v2=3
//	[TIMING] === End Dump ===
package trace

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const prefix = "[TIMING] "

// Event is one entry of the timing ring
type Event struct {
	Name   string
	Axis   int // -1 when the event is not tied to an axis
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

// Dump is one complete timing-ring dump
type Dump struct {
	Events []Event
}

// ParseLine parses one event line. ok is false for lines that are not
// events (other log output, dump delimiters).
func ParseLine(line string) (ev Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return Event{}, false, nil
	}
	fields := strings.Fields(line[len(prefix):])
	if len(fields) == 0 || fields[0] == "===" {
		return Event{}, false, nil
	}

	ev = Event{Name: fields[0], Axis: -1}
	for _, f := range fields[1:] {
		key, value, found := strings.Cut(f, "=")
		if !found {
			return Event{}, false, errors.Errorf("malformed field %q", f)
		}
		switch key {
		case "axis":
			if value == "-" {
				continue
			}
			ev.Axis, err = strconv.Atoi(value)
		case "clock":
			ev.Clock, err = parseUint(value)
		case "v1":
			ev.Value1, err = parseUint(value)
		case "v2":
			ev.Value2, err = parseUint(value)
		}
		if err != nil {
			return Event{}, false, errors.Wrapf(err, "field %s", key)
		}
	}
	return ev, true, nil
}

func parseUint(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// Read collects the dumps found in r. Lines outside a dump are ignored; a
// dump cut short by the end of input is still returned.
func Read(r io.Reader) ([]Dump, error) {
	var dumps []Dump
	var cur *Dump

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		switch {
		case strings.Contains(line, "=== Timing Ring Dump ==="):
			dumps = append(dumps, Dump{})
			cur = &dumps[len(dumps)-1]
			continue
		case strings.Contains(line, "=== End Dump ==="):
			cur = nil
			continue
		}

		ev, ok, err := ParseLine(line)
		if err != nil {
			return dumps, errors.Wrapf(err, "line %d", lineNo)
		}
		if ok && cur != nil {
			cur.Events = append(cur.Events, ev)
		}
	}
	return dumps, errors.Wrap(scanner.Err(), "read")
}

// Summary aggregates a dump
type Summary struct {
	Counts    map[string]int
	Span      uint32 // clock ticks from first to last event
	Underruns int
	MoveTimes []uint32 // clock ticks from MOVE_START to the MOVE_DONE of the same movement
}

// Summarize computes the summary of a dump. Clocks are 32-bit and may wrap.
func (d *Dump) Summarize() Summary {
	s := Summary{Counts: make(map[string]int)}
	if len(d.Events) == 0 {
		return s
	}

	// Both events carry the movement number in v1
	starts := make(map[uint32]uint32)
	for _, ev := range d.Events {
		s.Counts[ev.Name]++
		switch ev.Name {
		case "UNDERRUN!":
			s.Underruns++
		case "MOVE_START":
			starts[ev.Value1] = ev.Clock
		case "MOVE_DONE":
			if start, ok := starts[ev.Value1]; ok {
				s.MoveTimes = append(s.MoveTimes, ev.Clock-start)
				delete(starts, ev.Value1)
			}
		}
	}
	s.Span = d.Events[len(d.Events)-1].Clock - d.Events[0].Clock
	return s
}

// Names returns the event names of the summary in alphabetical order
func (s *Summary) Names() []string {
	names := make([]string, 0, len(s.Counts))
	for name := range s.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
