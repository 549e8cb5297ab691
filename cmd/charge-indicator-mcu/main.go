//go:build tinygo

// Command charge-indicator-mcu runs one indicator on a microcontroller.
// Edge handlers run in interrupt context; the main loop only reports.
package main

import (
	"time"

	"machine"

	"github.com/sweeney/charge-indicator/internal/gpio"
	"github.com/sweeney/charge-indicator/internal/indicator"
)

// GP2/GP3 on a Pico; change as needed. Charge controller STAT outputs are
// open drain, so they read active low with a pull-up.
const (
	stat1Pin machine.Pin = 2
	stat2Pin machine.Pin = 3
)

func main() {
	time.Sleep(time.Second)

	provider := gpio.NewMachineProvider()
	d, err := indicator.Init(indicator.Config{
		Name:  "charger",
		LED:   provider.Pin(gpio.Line{Name: "LED", Offset: int(machine.LED)}),
		Stat1: provider.Pin(gpio.Line{Name: "STAT1", Offset: int(stat1Pin), ActiveLow: true, Pull: gpio.PullUp}),
		Stat2: provider.Pin(gpio.Line{Name: "STAT2", Offset: int(stat2Pin), ActiveLow: true, Pull: gpio.PullUp}),
	})
	if err != nil {
		for {
			println("init failed:", err.Error())
			time.Sleep(5 * time.Second)
		}
	}

	var last indicator.Stats
	for {
		time.Sleep(time.Second)
		st := d.Stats()
		if st == last {
			continue
		}
		println("LED", d.Output().Int(), "evaluations", st.Evaluations, "read failures", st.ReadFailures, "write failures", st.WriteFailures)
		last = st
	}
}
