// Package config describes the machine driven by the motion engine and
// converts it into the engine's read-only constants.
package config

import (
	"encoding/json"
	"errors"

	"go.uber.org/multierr"

	"motionrt/motion"
)

var (
	ErrTooManyAxes    = errors.New("more axes than the engine supports")
	ErrBandInverted   = errors.New("distance band minimum above maximum")
	ErrLimitBelowBand = errors.New("distance limit below the band maximum")
	ErrBadStepsPerMM  = errors.New("steps per mm must be positive")
	ErrPositionLimits = errors.New("position out of limits")
	ErrBadPin         = errors.New("pin name must be gpioN")
	ErrUnknownAxis    = errors.New("unknown axis name")
)

// AxisConfig is the configuration of one axis. Speeds and accelerations are
// in units (mm) per second.
type AxisConfig struct {
	Name         string  `json:"name" yaml:"name"`
	StepPin      string  `json:"step_pin" yaml:"step_pin"`
	DirPin       string  `json:"dir_pin" yaml:"dir_pin"`
	EnablePin    string  `json:"enable_pin" yaml:"enable_pin"`
	StepsPerMM   float32 `json:"steps_per_mm" yaml:"steps_per_mm"` // 0 selects 80 on Load
	MaxVelocity  float32 `json:"max_velocity" yaml:"max_velocity"`
	MaxAccel     float32 `json:"max_accel" yaml:"max_accel"`
	MaxJerk      float32 `json:"max_jerk" yaml:"max_jerk"` // largest instantaneous speed change
	MinPosition  float32 `json:"min_position" yaml:"min_position"`
	MaxPosition  float32 `json:"max_position" yaml:"max_position"`
	InvertDir    bool    `json:"invert_dir" yaml:"invert_dir"`
	InvertEnable bool    `json:"invert_enable" yaml:"invert_enable"`
}

// BandConfig bounds the per-axis pulse count of a sub-movement
type BandConfig struct {
	MinDistance   uint16 `json:"min_distance" yaml:"min_distance"`
	MaxDistance   uint16 `json:"max_distance" yaml:"max_distance"`
	DistanceLimit uint16 `json:"distance_limit" yaml:"distance_limit"`
	MaxRetries    int    `json:"max_retries" yaml:"max_retries"`
}

// ToolConfig is the servo-signal tool output (spindle ESC, laser driver)
type ToolConfig struct {
	Pin     string `json:"pin" yaml:"pin"`
	MinUS   uint16 `json:"min_us" yaml:"min_us"` // pulse width at power 0
	MaxUS   uint16 `json:"max_us" yaml:"max_us"` // pulse width at power 1
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Machine is the complete machine description
type Machine struct {
	Axes          []AxisConfig `json:"axes" yaml:"axes"`
	Band          BandConfig   `json:"band" yaml:"band"`
	Tool          ToolConfig   `json:"tool" yaml:"tool"`
	QueueSize     int          `json:"queue_size" yaml:"queue_size"`           // timed sub-movements
	MoveQueueSize int          `json:"move_queue_size" yaml:"move_queue_size"` // pending movements
	TimerFreq     uint32       `json:"timer_freq" yaml:"timer_freq"`
	MinDelay      uint32       `json:"min_delay" yaml:"min_delay"` // timer ticks between elementary ticks
	DefaultSpeed  float32      `json:"default_speed" yaml:"default_speed"`
}

// Load parses a JSON machine description, fills defaults and validates it
func Load(jsonData []byte) (*Machine, error) {
	var m Machine

	err := json.Unmarshal(jsonData, &m)
	if err != nil {
		return nil, err
	}
	return finish(&m)
}

func finish(m *Machine) (*Machine, error) {
	applyDefaults(m)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// applyDefaults fills in missing values
func applyDefaults(m *Machine) {
	if m.Band.MinDistance == 0 {
		m.Band.MinDistance = 10
	}
	if m.Band.MaxDistance == 0 {
		m.Band.MaxDistance = 15
	}
	if m.Band.DistanceLimit == 0 {
		m.Band.DistanceLimit = 4 * m.Band.MaxDistance
	}
	if m.Band.MaxRetries == 0 {
		m.Band.MaxRetries = 8
	}
	if m.QueueSize == 0 {
		m.QueueSize = 16
	}
	if m.MoveQueueSize == 0 {
		m.MoveQueueSize = 8
	}
	if m.TimerFreq == 0 {
		m.TimerFreq = 1000000 // 1 MHz
	}
	if m.MinDelay == 0 {
		m.MinDelay = 4
	}
	if m.DefaultSpeed == 0 {
		m.DefaultSpeed = 50.0 // 50 mm/s
	}
	if m.Tool.MinUS == 0 {
		m.Tool.MinUS = 1000
	}
	if m.Tool.MaxUS == 0 {
		m.Tool.MaxUS = 2000
	}

	for i := range m.Axes {
		axis := &m.Axes[i]
		if axis.StepsPerMM == 0 {
			axis.StepsPerMM = 80.0 // Common value
		}
		if axis.MaxVelocity == 0 {
			axis.MaxVelocity = 300.0
		}
		if axis.MaxAccel == 0 {
			axis.MaxAccel = 1000.0
		}
		if axis.MaxJerk == 0 {
			axis.MaxJerk = 10.0
		}
	}
}

// Validate rejects descriptions the engine cannot run. Every problem found
// is reported; use errors.Is or multierr.Errors to inspect them.
func (m *Machine) Validate() error {
	var err error
	if len(m.Axes) > motion.NAxes {
		err = multierr.Append(err, ErrTooManyAxes)
	}
	if m.Band.MinDistance > m.Band.MaxDistance {
		err = multierr.Append(err, ErrBandInverted)
	}
	// A uint16 limit always fits in the 16 pulse planes
	if m.Band.DistanceLimit < m.Band.MaxDistance {
		err = multierr.Append(err, ErrLimitBelowBand)
	}
	// Load replaces zero by the default, a machine built in code does not
	for _, axis := range m.Axes {
		if axis.StepsPerMM <= 0 {
			err = multierr.Append(err, ErrBadStepsPerMM)
			break
		}
	}
	return err
}

// Constants converts the description to the engine's steps-based constants
func (m *Machine) Constants() motion.Constants {
	c := motion.Constants{
		Band: motion.Band{
			MinDistance:   m.Band.MinDistance,
			MaxDistance:   m.Band.MaxDistance,
			DistanceLimit: m.Band.DistanceLimit,
			MaxRetries:    m.Band.MaxRetries,
		},
		TimerFreq: m.TimerFreq,
		MinDelay:  m.MinDelay,
	}
	for i, axis := range m.Axes {
		if i >= motion.NAxes {
			break
		}
		c.Axes[i] = motion.AxisLimits{
			StepsPerUnit: axis.StepsPerMM,
			MaxSpeed:     axis.MaxVelocity * axis.StepsPerMM,
			MaxAccel:     axis.MaxAccel * axis.StepsPerMM,
			MaxJerk:      axis.MaxJerk * axis.StepsPerMM,
		}
	}
	return c
}

// ParsePin converts a "gpioN" pin name to its number
func ParsePin(name string) (uint8, error) {
	if len(name) < 5 || name[:4] != "gpio" {
		return 0, ErrBadPin
	}
	n := 0
	for _, c := range name[4:] {
		if c < '0' || c > '9' {
			return 0, ErrBadPin
		}
		n = n*10 + int(c-'0')
	}
	if n > 47 {
		return 0, ErrBadPin
	}
	return uint8(n), nil
}

// StepPinsConsecutive reports whether the step pins follow each other,
// first axis lowest, and returns the first one
func (m *Machine) StepPinsConsecutive() (uint8, bool) {
	if len(m.Axes) == 0 {
		return 0, false
	}
	base, err := ParsePin(m.Axes[0].StepPin)
	if err != nil {
		return 0, false
	}
	for i, axis := range m.Axes {
		pin, err := ParsePin(axis.StepPin)
		if err != nil || pin != base+uint8(i) {
			return 0, false
		}
	}
	return base, true
}

// AxisIndex returns the index of the named axis, or -1
func (m *Machine) AxisIndex(name string) int {
	for i, axis := range m.Axes {
		if axis.Name == name {
			return i
		}
	}
	return -1
}

// Group returns the signature of the named axes
func (m *Machine) Group(names ...string) (motion.Signature, error) {
	var g motion.Signature
	for _, name := range names {
		i := m.AxisIndex(name)
		if i < 0 || i >= motion.NAxes {
			return 0, ErrUnknownAxis
		}
		g = g.With(i)
	}
	return g, nil
}

// CheckLimits validates that a position (units) is within the configured
// travel of every axis. Axes with an empty range are not checked.
func (m *Machine) CheckLimits(pos [motion.NAxes]float32) error {
	for i, axis := range m.Axes {
		if i >= motion.NAxes || axis.MinPosition >= axis.MaxPosition {
			continue
		}
		if pos[i] < axis.MinPosition || pos[i] > axis.MaxPosition {
			return ErrPositionLimits
		}
	}
	return nil
}

// Default returns a cartesian machine with an extruder axis. Step pins are
// consecutive, as the PIO pulse emitter requires.
func Default() *Machine {
	m := &Machine{
		Axes: []AxisConfig{
			{
				Name:        "x",
				StepPin:     "gpio2",
				DirPin:      "gpio6",
				EnablePin:   "gpio10",
				StepsPerMM:  80.0,
				MaxVelocity: 300.0,
				MaxAccel:    3000.0,
				MaxJerk:     10.0,
				MinPosition: 0.0,
				MaxPosition: 220.0,
			},
			{
				Name:        "y",
				StepPin:     "gpio3",
				DirPin:      "gpio7",
				EnablePin:   "gpio10",
				StepsPerMM:  80.0,
				MaxVelocity: 300.0,
				MaxAccel:    3000.0,
				MaxJerk:     10.0,
				MinPosition: 0.0,
				MaxPosition: 220.0,
			},
			{
				Name:        "z",
				StepPin:     "gpio4",
				DirPin:      "gpio8",
				EnablePin:   "gpio10",
				StepsPerMM:  400.0,
				MaxVelocity: 10.0,
				MaxAccel:    100.0,
				MaxJerk:     0.5,
				MinPosition: 0.0,
				MaxPosition: 250.0,
			},
			{
				Name:        "e",
				StepPin:     "gpio5",
				DirPin:      "gpio9",
				EnablePin:   "gpio10",
				StepsPerMM:  96.0,
				MaxVelocity: 50.0,
				MaxAccel:    5000.0,
				MaxJerk:     5.0,
				MinPosition: -10000.0,
				MaxPosition: 10000.0,
			},
		},
		Tool: ToolConfig{Pin: "gpio15", Enabled: true},
	}
	applyDefaults(m)
	return m
}
