// Package app is the irrigation controller firmware: an idle loop, a
// periodic soil moisture sampler and the dry and wet soil handlers it
// signals. The sampler alternates between a dry watcher and a wet watcher:
// each alert handler rebinds the sampler once the actuator has the alert,
// so the actuator sees one alert per crossing.
package app

import (
	"github.com/lunixbochs/evcorn/go/board"
	"github.com/lunixbochs/evcorn/go/cpu/mcu"
	"github.com/lunixbochs/evcorn/go/kernel"
	"github.com/lunixbochs/evcorn/go/models"
	"github.com/lunixbochs/evcorn/go/serial"
)

const (
	EventIdle    kernel.EventID = 0
	EventSample  kernel.EventID = 1
	EventDrySoil kernel.EventID = 2
	EventWetSoil kernel.EventID = 3
)

func svc(r kernel.Routine) uint32 { return uint32(r) }

// Build assembles the firmware at board.CODE_BASE. The moisture
// thresholds come from config. The sampler starts on the dry watcher.
func Build(config *models.Config) (*board.Image, error) {
	config = config.Init()
	a := mcu.NewAsm(board.CODE_BASE)

	a.Label("idle").
		Wfi().
		B("idle")

	// read_level prints the moisture level and returns it in r0
	a.Label("read_level").
		Push(mcu.LR).
		Movi(mcu.R0, uint32(kernel.SensorSoilMoisture)).
		Svc(svc(kernel.ReadSensor)).
		Mov(mcu.R4, mcu.R0).
		Adr(mcu.R0, "fmt_level").
		Mov(mcu.R1, mcu.R4).
		Svc(svc(kernel.Print)).
		Mov(mcu.R0, mcu.R4).
		Pop(mcu.PC)

	// r0 holds the previous stack top on entry; the watchers do not need it
	a.Label("watch_dry").
		Push(mcu.LR).
		Bl("read_level").
		Cmpi(mcu.R0, config.DryLevel).
		Bhs("watch_done").
		Movi(mcu.R0, uint32(EventDrySoil)).
		Svc(svc(kernel.SendEvent)).
		Pop(mcu.PC)
	a.Label("watch_wet").
		Push(mcu.LR).
		Bl("read_level").
		Cmpi(mcu.R0, config.WetLevel+1).
		Blo("watch_done").
		Movi(mcu.R0, uint32(EventWetSoil)).
		Svc(svc(kernel.SendEvent)).
		Pop(mcu.PC)
	a.Label("watch_done").
		Pop(mcu.PC)

	alert := func(name, msg, text, next string) {
		a.Label(name).
			Push(mcu.LR).
			Adr(mcu.R0, msg).
			Movi(mcu.R1, uint32(serial.MessageSize)).
			Svc(svc(kernel.SendData)).
			Cmpi(mcu.R0, uint32(serial.MessageSize)).
			Bne(name+"_failed").
			Adr(mcu.R0, text).
			Svc(svc(kernel.Print)).
			Movi(mcu.R0, uint32(EventSample)).
			Adr(mcu.R1, next).
			Svc(svc(kernel.SetEventHandler)).
			Pop(mcu.PC)
		a.Label(name+"_failed").
			Adr(mcu.R0, "str_failed").
			Svc(svc(kernel.Print)).
			Pop(mcu.PC)
	}
	alert("dry", "msg_dry", "str_dry", "watch_wet")
	alert("wet", "msg_wet", "str_wet", "watch_dry")

	a.Align(4).
		Label("msg_dry").Bytes(serial.NewMessage(serial.SoilDryAlert, 0).Bytes()).
		Label("msg_wet").Bytes(serial.NewMessage(serial.SoilWetAlert, 0).Bytes()).
		Label("fmt_level").Asciz("moisture %u%%\n").
		Label("str_dry").Asciz("dry alert sent\n").
		Label("str_wet").Asciz("wet alert sent\n").
		Label("str_failed").Asciz("alert not sent\n")

	code, syms, err := a.Assemble()
	if err != nil {
		return nil, err
	}
	return &board.Image{
		Base: board.CODE_BASE,
		Code: code,
		Handlers: map[kernel.EventID]uint32{
			EventIdle:    uint32(syms["idle"]),
			EventSample:  uint32(syms["watch_dry"]),
			EventDrySoil: uint32(syms["dry"]),
			EventWetSoil: uint32(syms["wet"]),
		},
		Symbols: syms,
	}, nil
}
