package motion

import "testing"

// bend runs along +x until t=0.5, then turns 45 degrees toward +x+y
func bend(t float32, out *[NAxes]float32) {
	*out = [NAxes]float32{}
	if t < 0.5 {
		out[0] = 2000 * t
		return
	}
	s := 2000 * (t - 0.5)
	out[0] = 1000 + s
	out[1] = s
}

func TestFindCorner(t *testing.T) {
	spu := [NAxes]float32{1, 1, 1, 1}
	jerk := [NAxes]float32{200, 200, 200, 200}
	var in [NAxes]float32

	c, ok := FindCorner(TrajectoryFunc(bend), 0.4, 0.6, 0.00625, spu, jerk, in, false, 3000)
	if !ok {
		t.Fatal("Expected a corner between 0.4 and 0.6")
	}
	if c.Param < 0.49 || c.Param > 0.51 {
		t.Errorf("Expected the turn to start near 0.5, got %f", c.Param)
	}
	if c.Travel[0] < 195 || c.Travel[0] > 201 || c.Travel[1] != 0 {
		t.Errorf("Expected about 200 x steps before the turn, got %v", c.Travel)
	}
	if c.Exit[0] < 0.999 || c.Exit[1] > 0.01 {
		t.Errorf("Expected +x exit direction, got %v", c.Exit)
	}
	want := JerkLimitedSpeed([NAxes]float32{1}, [NAxes]float32{0.70710677, 0.70710677}, jerk)
	if c.Speed < want*0.99 || c.Speed > want*1.01 {
		t.Errorf("Expected corner speed %f, got %f", want, c.Speed)
	}

	// Already slow enough for the turn
	if _, ok := FindCorner(TrajectoryFunc(bend), 0.4, 0.6, 0.00625, spu, jerk, in, false, want/2); ok {
		t.Error("Expected no corner below the jerk-limited speed")
	}

	// Straight span
	if _, ok := FindCorner(TrajectoryFunc(bend), 0, 0.4, 0.00625, spu, jerk, in, false, 3000); ok {
		t.Error("Expected no corner on a straight span")
	}
}

func TestFindCornerIncomingDirection(t *testing.T) {
	spu := [NAxes]float32{1, 1, 1, 1}
	jerk := [NAxes]float32{200, 200, 200, 200}

	// Arriving along +y, the +x span is a turn right at the start
	c, ok := FindCorner(TrajectoryFunc(bend), 0, 0.1, 0.00625, spu, jerk, [NAxes]float32{0, 1}, true, 3000)
	if !ok {
		t.Fatal("Expected a corner at the start")
	}
	if c.Param != 0 || c.Travel != [NAxes]uint32{} {
		t.Errorf("Expected the corner at the scan start, got param %f travel %v", c.Param, c.Travel)
	}
}
