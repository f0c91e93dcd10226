package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"motionrt/host/serial"
	"motionrt/host/trace"
)

var (
	device  = flag.String("device", "", "Serial device of the debug UART (e.g. /dev/ttyUSB0)")
	baud    = flag.Int("baud", 115200, "Debug UART baud rate")
	file    = flag.String("file", "", "Read a captured log instead of a serial port")
	verbose = flag.Bool("verbose", false, "Print every event")
	freq    = flag.Uint("freq", 1000000, "Timer frequency of the clock values (Hz)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	in, err := open()
	if err != nil {
		return err
	}
	defer in.Close()

	dumps, err := trace.Read(in)
	if err != nil {
		return errors.Wrap(err, "failed to read timing dumps")
	}
	if len(dumps) == 0 {
		fmt.Println("No timing dump found")
		return nil
	}

	for i, d := range dumps {
		printDump(i, &d)
	}
	return nil
}

func open() (io.ReadCloser, error) {
	switch {
	case *file != "":
		f, err := os.Open(*file)
		return f, errors.Wrap(err, "failed to open log")
	case *device != "":
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		fmt.Printf("Reading %s at %d baud, Ctrl-C to stop...\n", *device, *baud)
		return serial.Open(cfg)
	default:
		return nil, errors.New("either -device or -file is required")
	}
}

func printDump(index int, d *trace.Dump) {
	s := d.Summarize()
	fmt.Printf("\n=== Dump %d: %d events over %.3f ms ===\n", index+1, len(d.Events), ms(s.Span))

	if *verbose {
		for _, ev := range d.Events {
			axis := "-"
			if ev.Axis >= 0 {
				axis = fmt.Sprint(ev.Axis)
			}
			fmt.Printf("  %10d  %-12s axis=%s v1=%d v2=%d\n", ev.Clock, ev.Name, axis, ev.Value1, ev.Value2)
		}
	}

	for _, name := range s.Names() {
		fmt.Printf("  %-12s %d\n", name, s.Counts[name])
	}
	for i, t := range s.MoveTimes {
		fmt.Printf("  movement %d: %.3f ms\n", i+1, ms(t))
	}
	if s.Underruns > 0 {
		fmt.Printf("  WARNING: %d underrun(s)\n", s.Underruns)
	}
}

func ms(ticks uint32) float64 {
	return float64(ticks) * 1000 / float64(*freq)
}
