package trace

import (
	"strings"
	"testing"
)

const sample = `boot
[STEPGEN] underrun, aborting motion
[TIMING] === Timing Ring Dump ===
[TIMING] MOVE_START axis=- clock=1000 v1=1 v2=0
[TIMING] ARM axis=- clock=1010 v1=1 v2=15
[TIMING] BAND_MISS axis=2 clock=1200 v1=3 v2=0
[TIMING] MOVE_DONE axis=- clock=4000 v1=1 v2=0
[TIMING] UNDERRUN! axis=- clock=4100 v1=2 v2=0
[TIMING] === End Dump ===
[TIMING] ARM axis=- clock=5000 v1=9 v2=9
[TIMING] === Timing Ring Dump ===
[TIMING] STOP axis=- clock=100 v1=0 v2=0
`

func TestParseLine(t *testing.T) {
	ev, ok, err := ParseLine("[TIMING] BAND_MISS axis=2 clock=1200 v1=3 v2=7")
	if err != nil || !ok {
		t.Fatalf("ParseLine failed: ok=%v err=%v", ok, err)
	}
	want := Event{Name: "BAND_MISS", Axis: 2, Clock: 1200, Value1: 3, Value2: 7}
	if ev != want {
		t.Errorf("Expected %+v, got %+v", want, ev)
	}

	if _, ok, _ := ParseLine("[STEPGEN] hello"); ok {
		t.Error("Expected non-timing line to be skipped")
	}
	if _, ok, _ := ParseLine("[TIMING] === End Dump ==="); ok {
		t.Error("Expected delimiter to be skipped")
	}
	if _, _, err := ParseLine("[TIMING] ARM clock=abc"); err == nil {
		t.Error("Expected an error for a bad clock")
	}
	if _, _, err := ParseLine("[TIMING] ARM clock"); err == nil {
		t.Error("Expected an error for a field without value")
	}
}

func TestReadAndSummarize(t *testing.T) {
	dumps, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(dumps) != 2 {
		t.Fatalf("Expected 2 dumps, got %d", len(dumps))
	}
	if len(dumps[0].Events) != 5 || len(dumps[1].Events) != 1 {
		t.Errorf("Expected 5 and 1 events, got %d and %d", len(dumps[0].Events), len(dumps[1].Events))
	}

	s := dumps[0].Summarize()
	if s.Underruns != 1 {
		t.Errorf("Expected 1 underrun, got %d", s.Underruns)
	}
	if s.Span != 3100 {
		t.Errorf("Expected span 3100, got %d", s.Span)
	}
	if len(s.MoveTimes) != 1 || s.MoveTimes[0] != 3000 {
		t.Errorf("Expected one movement of 3000 ticks, got %v", s.MoveTimes)
	}
	names := s.Names()
	if len(names) != 5 || names[0] != "ARM" || names[4] != "UNDERRUN!" {
		t.Errorf("Unexpected names %v", names)
	}
}

func TestSummarizeWrappedClock(t *testing.T) {
	d := Dump{Events: []Event{
		{Name: "MOVE_START", Clock: 0xFFFFFF00, Value1: 4},
		{Name: "MOVE_DONE", Clock: 0x100, Value1: 4},
	}}
	s := d.Summarize()
	if s.Span != 0x200 || len(s.MoveTimes) != 1 || s.MoveTimes[0] != 0x200 {
		t.Errorf("Expected wrapped span 0x200, got %d %v", s.Span, s.MoveTimes)
	}
}
