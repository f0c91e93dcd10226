package stepgen

import (
	"testing"

	"motionrt/motion"
)

func TestFeederDrainsProgram(t *testing.T) {
	r := &recorder{}
	e := New(testConfig(), r, nil)

	outcomes := make([]outcome, 10)
	var moves []motion.Movement
	from := [2]float32{0, 0}
	for i := range outcomes {
		to := [2]float32{from[0] + 20, from[1] + float32(i%3)*10}
		moves = append(moves, movement(from, to, &outcomes[i]))
		from = to
	}

	f := NewFeeder(e, moves)
	for i := 0; i < 200000 && !f.Done(); i++ {
		if err := f.Poll(); err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		e.Poll()
		if r.armed {
			r.armed = false
			e.Tick()
		}
	}

	if !f.Done() {
		t.Fatalf("Feeder not done, %d pending (state %s)", f.Pending(), e.State())
	}
	for i, o := range outcomes {
		if o.calls != 1 || o.err != nil {
			t.Errorf("Movement %d: expected one Finalize(nil), got %d calls, err=%v", i, o.calls, o.err)
		}
	}
	if r.pos[0] != int32(from[0]) || r.pos[1] != int32(from[1]) {
		t.Errorf("Expected driver at %v, got (%d, %d)", from, r.pos[0], r.pos[1])
	}
	if st := e.Stats(); st.Rejected != 0 {
		t.Errorf("A full queue must not count as rejection, got %d", st.Rejected)
	}
}

func TestFeederReportsRefusal(t *testing.T) {
	r := &recorder{}
	e := New(testConfig(), r, nil)

	bad := motion.Movement{Min: 1, Max: 1}
	f := NewFeeder(e, []motion.Movement{bad})
	if err := f.Poll(); err != ErrDegenerateMove {
		t.Errorf("Expected ErrDegenerateMove, got %v", err)
	}
	if f.Pending() != 0 {
		t.Errorf("Expected the refused movement to be skipped, %d pending", f.Pending())
	}
}
