package kernel

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/models"
	"github.com/lunixbochs/evcorn/go/models/cpu"
	"github.com/lunixbochs/evcorn/go/serial"
)

const (
	stackBase = 0x20000000
	stackSize = 0x400
	stackTop  = stackBase + stackSize
	dataBase  = 0x1000
	exitStub  = 0x100
	threadPSR = 1 << 24
)

var errStop = errors.New("platform stopped")

func handlerAddr(id EventID) Ptr { return Ptr(0x4000 + 0x100*uint32(id)) }

type fakePlatform struct {
	*cpu.Mem
	resumed []uint32
	script  []Trap
}

func (f *fakePlatform) Resume(sp uint32) (Trap, error) {
	f.resumed = append(f.resumed, sp)
	if len(f.script) == 0 {
		return Trap{}, errStop
	}
	t := f.script[0]
	f.script = f.script[1:]
	if t.SP == 0 {
		t.SP = sp
	}
	return t, nil
}

func (f *fakePlatform) ExitStub() uint32  { return exitStub }
func (f *fakePlatform) ThreadPSR() uint32 { return threadPSR }

type harness struct {
	t    *testing.T
	k    *Kernel
	p    *fakePlatform
	uart *serial.Uart
	tx   bytes.Buffer
	log  bytes.Buffer
}

func newHarness(t *testing.T, tweak func(c *models.Config)) *harness {
	mem := cpu.NewMem(32, binary.LittleEndian)
	if err := mem.MemMapProt(stackBase, stackSize, cpu.PROT_READ|cpu.PROT_WRITE, "shared stack"); err != nil {
		t.Fatal(err)
	}
	if err := mem.MemMapProt(dataBase, 0x1000, cpu.PROT_READ|cpu.PROT_WRITE, "data"); err != nil {
		t.Fatal(err)
	}
	h := &harness{t: t, p: &fakePlatform{Mem: mem}}
	h.uart = serial.NewUart(&h.tx, nil)
	config := models.DefaultConfig()
	config.Output = &h.log
	config.PeriodicTicks = 1
	if tweak != nil {
		tweak(config)
	}
	k, err := New(h.p, h.uart, stackBase, stackSize, config)
	if err != nil {
		t.Fatal(err)
	}
	for id := EventID(0); id < Capacity; id++ {
		if err := k.Register(id, handlerAddr(id)); err != nil {
			t.Fatal(err)
		}
	}
	h.k = k
	h.must(k.Start())
	return h
}

func (h *harness) must(err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) frame(cb *ControlBlock) *models.Frame {
	h.t.Helper()
	f, err := models.ReadFrame(h.p, cb.SP)
	if err != nil {
		h.t.Fatal(err)
	}
	return f
}

// syscall stages args in the current event's frame and traps into the kernel.
func (h *harness) syscall(num Routine, args ...uint32) error {
	cur := h.k.Current()
	f := h.frame(cur)
	regs := []*uint32{&f.R0, &f.R1, &f.R2, &f.R3}
	for i, a := range args {
		*regs[i] = a
	}
	h.must(models.WriteFrame(h.p, cur.SP, f))
	return h.k.Handle(Trap{Kind: TrapSyscall, Num: uint32(num), SP: cur.SP})
}

func (h *harness) irq(line Line) error {
	return h.k.Handle(Trap{Kind: TrapInterrupt, Num: 15, Line: line, SP: h.k.Current().SP})
}

func (h *harness) block(id EventID) *ControlBlock {
	cb, err := h.k.Registry().Get(id)
	if err != nil {
		h.t.Fatal(err)
	}
	return cb
}

func (h *harness) expect(id EventID) {
	h.t.Helper()
	if cur := h.k.Current(); cur.ID != id {
		h.t.Fatalf("current is %s, wanted %s\n%s", cur, id, h.k.Status())
	}
}

func (h *harness) expectReady(ids ...EventID) {
	h.t.Helper()
	ready := h.k.Scheduler().Ready()
	ok := len(ready) == len(ids)
	for i := 0; ok && i < len(ids); i++ {
		ok = ready[i].ID == ids[i]
	}
	if !ok {
		h.t.Fatalf("ready queue %v, wanted %v", ready, ids)
	}
}

func TestStartIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.expect(IdleEvent)
	idle := h.block(IdleEvent)
	if idle.SP != stackTop-models.FrameSize {
		t.Fatalf("idle frame at %#x", idle.SP)
	}
	f := h.frame(idle)
	if f.PC != uint32(handlerAddr(0)) || f.LR != exitStub || f.R0 != stackTop || f.XPSR != threadPSR {
		t.Fatalf("bad idle trampoline: %v", f)
	}
	if err := h.k.Run(); err != errStop {
		t.Fatalf("run: %v", err)
	}
	if len(h.p.resumed) != 1 || h.p.resumed[0] != idle.SP {
		t.Fatalf("resumed %#x", h.p.resumed)
	}
}

func TestStartUnboundIdle(t *testing.T) {
	mem := cpu.NewMem(32, binary.LittleEndian)
	mem.MemMapProt(stackBase, stackSize, cpu.PROT_READ|cpu.PROT_WRITE, "shared stack")
	config := models.DefaultConfig()
	config.Output = &bytes.Buffer{}
	k, err := New(&fakePlatform{Mem: mem}, serial.NewUart(nil, nil), stackBase, stackSize, config)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := IsFatal(k.Run()); !ok {
		t.Fatal("kernel ran without an idle handler")
	}
}

func TestPreemption(t *testing.T) {
	h := newHarness(t, nil)
	idle := h.block(IdleEvent)
	h.must(h.syscall(SendEvent, 2))
	h.expect(2)
	two := h.block(2)
	if two.SP != idle.SP-models.FrameSize {
		t.Fatalf("event 2 frame at %#x, idle at %#x", two.SP, idle.SP)
	}
	f := h.frame(two)
	if f.PC != uint32(handlerAddr(2)) || f.R0 != idle.SP || f.LR != exitStub {
		t.Fatalf("bad trampoline: %v", f)
	}
	// 1 outranks 2
	h.must(h.syscall(SendEvent, 1))
	h.expect(1)
	h.expectReady(2)
	// 3 does not outrank 1
	h.must(h.syscall(SendEvent, 3))
	h.expect(1)
	h.expectReady(2, 3)
	if h.block(3).Started() {
		t.Fatal("queued event got a frame before running")
	}
}

func TestTerminationFallback(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.syscall(SendEvent, 1))
	h.expect(1)
	h.must(h.syscall(EventHandlerReturn))
	h.expect(IdleEvent)
	if h.k.Stack().Depth() != 1 {
		t.Fatalf("depth %d after return", h.k.Stack().Depth())
	}
	if h.block(1).Started() {
		t.Fatal("returned event still started")
	}
}

func TestQueueOrdering(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.syscall(SendEvent, 1))
	h.must(h.syscall(SendEvent, 3))
	h.must(h.syscall(SendEvent, 2))
	h.expectReady(2, 3)
	var order []EventID
	for h.k.Current().ID != IdleEvent {
		order = append(order, h.k.Current().ID)
		h.must(h.syscall(EventHandlerReturn))
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("ran in order %v", order)
	}
}

func TestNesting(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.syscall(SendEvent, 3))
	h.must(h.syscall(SendEvent, 2))
	two := h.block(2)
	// event 2 pushes 16 bytes, then signals idle, which is a no-op
	h.must(models.WriteFrame(h.p, two.SP-16, &models.Frame{R0: 0}))
	h.must(h.k.Handle(Trap{Kind: TrapSyscall, Num: uint32(SendEvent), SP: two.SP - 16}))
	h.expect(2)
	f := h.frame(two)
	f.R0 = 1
	h.must(models.WriteFrame(h.p, two.SP, f))
	h.must(h.k.Handle(Trap{Kind: TrapSyscall, Num: uint32(SendEvent), SP: two.SP}))
	h.expect(1)

	secs := h.k.Stack().Sections()
	if len(secs) != 4 {
		t.Fatalf("nest depth %d", len(secs))
	}
	for i, id := range []EventID{0, 3, 2, 1} {
		if secs[i].Owner.ID != id {
			t.Fatalf("section %d owned by %s", i, secs[i].Owner)
		}
		if i > 0 && secs[i].Hi != secs[i-1].Lo {
			t.Fatalf("section %d not directly below %d: %v %v", i, i-1, secs[i], secs[i-1])
		}
	}
	if h.frame(h.block(1)).R0 != two.SP {
		t.Fatal("event 1 trampoline does not point at event 2's stack top")
	}

	saved := two.SP
	h.must(h.syscall(EventHandlerReturn))
	h.expect(2)
	if two.SP != saved {
		t.Fatal("preempted frame moved")
	}
	h.must(h.syscall(EventHandlerReturn))
	h.expect(3)
	h.must(h.syscall(EventHandlerReturn))
	h.expect(IdleEvent)
	if err := h.k.Run(); err != errStop {
		t.Fatal(err)
	}
	if last := h.p.resumed[len(h.p.resumed)-1]; last != h.block(IdleEvent).SP {
		t.Fatalf("resumed %#x instead of idle", last)
	}
}

func TestSyscallRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.uart.InjectMessage(serial.NewMessage(serial.ChangeSoilMoisture, 250))
	h.must(h.irq(LineSerialRx))
	h.must(h.syscall(ReadSensor, uint32(SensorSoilMoisture)))
	if r0 := h.frame(h.k.Current()).R0; r0 != 250 {
		t.Fatalf("ReadSensor returned %d", r0)
	}
	h.must(h.syscall(ReadSensor, 7))
	if r0 := h.frame(h.k.Current()).R0; r0 != SensorInvalid {
		t.Fatalf("unknown sensor returned %#x", r0)
	}
	if h.uart.Pending() {
		t.Fatal("serial interrupt not cleared")
	}
}

func TestSerialSplitFrame(t *testing.T) {
	h := newHarness(t, nil)
	h.uart.SetRxWatermark(1)
	p := serial.NewMessage(serial.ChangeSoilMoisture, 250).Bytes()
	h.uart.Inject(p[:4])
	h.must(h.irq(LineSerialRx))
	if h.uart.Buffered() != 4 {
		t.Fatalf("partial frame consumed: %d bytes left", h.uart.Buffered())
	}
	h.uart.Inject(p[4:])
	h.must(h.irq(LineSerialRx))
	h.must(h.syscall(ReadSensor, uint32(SensorSoilMoisture)))
	if r0 := h.frame(h.k.Current()).R0; r0 != 250 {
		t.Fatalf("ReadSensor after split frame = %d", r0)
	}
	if h.uart.Pending() {
		t.Fatal("serial interrupt not cleared")
	}
}

func TestSerialGarbage(t *testing.T) {
	h := newHarness(t, nil)
	h.uart.Inject([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	h.must(h.irq(LineSerialRx))
	h.must(h.syscall(ReadSensor, 0))
	if r0 := h.frame(h.k.Current()).R0; r0 != 0 {
		t.Fatalf("garbage updated the sensor: %d", r0)
	}
	if !strings.Contains(h.log.String(), "bad message magic") {
		t.Fatalf("garbage not reported:\n%s", h.log.String())
	}
}

func TestUnknownRoutine(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.syscall(SendEvent, 2))
	h.must(h.syscall(SendEvent, 3))
	before := h.k.Status()
	sp := h.k.Current().SP
	h.must(h.k.Handle(Trap{Kind: TrapSyscall, Num: 42, SP: sp}))
	h.must(h.k.Handle(Trap{Kind: TrapInterrupt, Num: 20, Line: LineUnknown, SP: sp}))
	h.expect(2)
	h.expectReady(3)
	if after := h.k.Status(); after != before {
		t.Fatalf("state changed:\n%s\n%s", before, after)
	}
	if !strings.Contains(h.log.String(), "unknown svc #42") {
		t.Fatalf("unknown service not reported:\n%s", h.log.String())
	}
}

// The periodic timer signals 1, which signals 2 (dry soil). 2 waits
// behind 1, runs when 1 returns, then idle resumes.
func TestScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.uart.InjectMessage(serial.NewMessage(serial.ChangeSoilMoisture, 100))
	h.must(h.irq(LineSerialRx))
	h.must(h.irq(LineTimer))
	h.expect(1)
	h.must(h.syscall(ReadSensor, 0))
	if level := h.frame(h.k.Current()).R0; level != 100 {
		t.Fatalf("level %d", level)
	}
	h.must(h.syscall(SendEvent, 2))
	h.expect(1)
	h.expectReady(2)
	h.must(h.syscall(EventHandlerReturn))
	h.expect(2)

	msg := serial.NewMessage(serial.SoilDryAlert, 0).Bytes()
	h.must(h.p.MemWrite(dataBase, msg))
	h.must(h.syscall(SendData, dataBase, uint32(len(msg))))
	if sent := h.frame(h.k.Current()).R0; sent != uint32(len(msg)) {
		t.Fatalf("sent %d", sent)
	}
	h.must(h.syscall(EventHandlerReturn))
	h.expect(IdleEvent)
	h.expectReady()

	got, err := serial.Unpack(&h.tx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != serial.SoilDryAlert {
		t.Fatalf("transmitted %v", got)
	}
}

func TestCoalesce(t *testing.T) {
	h := newHarness(t, func(c *models.Config) { c.TraceSched = true })
	h.must(h.syscall(SendEvent, 1))
	depth := h.k.Stack().Depth()
	h.must(h.syscall(SendEvent, 1))
	h.must(h.irq(LineTimer))
	h.must(h.syscall(SendEvent, 0))
	h.expect(1)
	h.must(h.syscall(SendEvent, 3))
	h.must(h.syscall(SendEvent, 3))
	h.expectReady(3)
	if h.k.Stack().Depth() != depth {
		t.Fatal("coalesced signal grew the nest")
	}
	if !strings.Contains(h.log.String(), "coalesced") {
		t.Fatal("coalescing not reported")
	}
}

func TestPeriodicCountdown(t *testing.T) {
	h := newHarness(t, func(c *models.Config) { c.PeriodicTicks = 3 })
	h.must(h.irq(LineTimer))
	h.must(h.irq(LineTimer))
	h.expect(IdleEvent)
	h.must(h.irq(LineTimer))
	h.expect(1)
}

func TestUnbound(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.k.Register(3, 0))
	h.must(h.syscall(SendEvent, 3))
	h.expect(IdleEvent)
	h.expectReady()
	// rebinding from guest code
	h.must(h.syscall(SetEventHandler, 3, 0x7000))
	h.must(h.syscall(SendEvent, 3))
	h.expect(3)
	if h.frame(h.block(3)).PC != 0x7000 {
		t.Fatal("rebound handler not used")
	}
}

func TestUnboundWhilePending(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.syscall(SendEvent, 1))
	h.expect(1)
	h.must(h.syscall(SendEvent, 2))
	h.expectReady(2)
	h.must(h.syscall(SetEventHandler, 2, 0))
	h.must(h.syscall(EventHandlerReturn))
	h.expect(IdleEvent)
	h.expectReady()
	if h.k.Halted() != nil {
		t.Fatal(h.k.Halted())
	}
	if !strings.Contains(h.log.String(), "lost its handler") {
		t.Fatalf("skip not reported:\n%s", h.log.String())
	}
	if h.block(2).Started() {
		t.Fatal("unbound event was started")
	}
}

func TestFatal(t *testing.T) {
	h := newHarness(t, nil)
	err := h.syscall(SendEvent, 7)
	fe, ok := IsFatal(err)
	if !ok {
		t.Fatalf("out of range event: %v", err)
	}
	if fe.Event != IdleEvent {
		t.Fatalf("fatal in %s", fe.Event)
	}
	if err := h.k.Run(); err != h.k.Halted() {
		t.Fatal("halted kernel ran again")
	}

	h = newHarness(t, nil)
	if _, ok := IsFatal(h.syscall(EventHandlerReturn)); !ok {
		t.Fatal("idle returned without halting")
	}

	h = newHarness(t, nil)
	err = h.k.Handle(Trap{Kind: TrapFault, Num: 4, SP: h.k.Current().SP})
	if _, ok := IsFatal(err); !ok || !strings.Contains(err.Error(), "pc=") {
		t.Fatalf("fault: %v", err)
	}

	h = newHarness(t, nil)
	if _, ok := IsFatal(h.k.Handle(Trap{Kind: TrapSyscall, StackErr: true})); !ok {
		t.Fatal("stacking failure not fatal")
	}
}

func TestStackDepth(t *testing.T) {
	h := newHarness(t, func(c *models.Config) { c.StackDepth = 2 })
	h.must(h.syscall(SendEvent, 2))
	err := h.syscall(SendEvent, 1)
	if _, ok := IsFatal(err); !ok || errors.Cause(err) == nil {
		t.Fatalf("depth exhaustion: %v", err)
	}
	fe, _ := IsFatal(err)
	if errors.Cause(fe.Err) != ErrStackDepth {
		t.Fatalf("wrong cause %v", fe.Err)
	}
}

func TestStackOverflow(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.syscall(SendEvent, 3))
	// event 3 runs its stack down to the region base
	err := h.k.Handle(Trap{Kind: TrapSyscall, Num: uint32(SendEvent), SP: stackBase - 8})
	fe, ok := IsFatal(err)
	if !ok || errors.Cause(fe.Err) != ErrStackOverflow {
		t.Fatalf("overflow: %v", err)
	}
}

func TestPrint(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.p.MemWrite(dataBase, []byte("level %d%% %s %x\n\x00")))
	h.must(h.p.MemWrite(dataBase+0x100, []byte("dry\x00")))
	h.must(h.syscall(Print, dataBase, 42, dataBase+0x100, 0xbeef))
	if out := h.tx.String(); out != "level 42% dry beef\n" {
		t.Fatalf("printed %q", out)
	}
	// unreadable format pointer is reported, not fatal
	h.must(h.syscall(Print, 0x10))
	if !strings.Contains(h.log.String(), "bad arguments") {
		t.Fatal("bad format pointer not reported")
	}
}

func TestSendDataLimits(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.syscall(SendData, dataBase, MaxSendData+1))
	if r0 := h.frame(h.k.Current()).R0; r0 != 0 {
		t.Fatalf("oversized send returned %d", r0)
	}
	h.must(h.syscall(SendData, 0x10, 4))
	if r0 := h.frame(h.k.Current()).R0; r0 != 0 || h.tx.Len() != 0 {
		t.Fatal("unmapped send transmitted")
	}
}

func TestSprintf(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.p.MemWrite(dataBase, []byte("hi\x00")))
	tests := []struct {
		format string
		args   []uint32
		out    string
	}{
		{"plain", nil, "plain"},
		{"%d", []uint32{0xffffffff}, "-1"},
		{"%u", []uint32{0xffffffff}, "4294967295"},
		{"%c%c", []uint32{'o', 'k'}, "ok"},
		{"%s!", []uint32{dataBase}, "hi!"},
		{"%q %d", []uint32{1}, "%q 1"},
		{"%d %d", []uint32{1}, "1 %!d(missing)"},
		{"100%", nil, "100%"},
	}
	for _, test := range tests {
		if out := h.k.sprintf(test.format, test.args...); out != test.out {
			t.Errorf("sprintf(%q) = %q, want %q", test.format, out, test.out)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		trap    Trap
		routine Routine
	}{
		{Trap{Kind: TrapSyscall, Num: 0}, SetEventHandler},
		{Trap{Kind: TrapSyscall, Num: 5}, Print},
		{Trap{Kind: TrapSyscall, Num: 6}, Unknown},
		{Trap{Kind: TrapInterrupt, Line: LineTimer}, TimerTick},
		{Trap{Kind: TrapInterrupt, Line: LineSerialRx}, SerialReceive},
		{Trap{Kind: TrapInterrupt, Line: LineUnknown}, Unknown},
		{Trap{Kind: TrapFault, Num: 3}, Fault},
	}
	for _, test := range tests {
		if r := Classify(test.trap); r != test.routine {
			t.Errorf("%v classified as %v, want %v", test.trap, r, test.routine)
		}
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.must(h.syscall(SendEvent, 2))
	h.must(h.syscall(SendEvent, 3))
	s := h.k.Status()
	for _, want := range []string{"running", "ready", "suspended", "ready: [3]", "depth 2/4"} {
		if !strings.Contains(s, want) {
			t.Fatalf("status missing %q:\n%s", want, s)
		}
	}
}
