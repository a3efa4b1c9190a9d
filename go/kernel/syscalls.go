package kernel

import (
	"github.com/lunixbochs/evcorn/go/models/trace"
	"github.com/lunixbochs/evcorn/go/serial"
)

// MaxSendData bounds a single SendData transfer.
const MaxSendData = 256

func (k *Kernel) setEventHandler(cur *ControlBlock, id EventID, handler Ptr) (*ControlBlock, error) {
	if err := k.registry.Register(id, handler); err != nil {
		return nil, k.fatal(err, "SetEventHandler")
	}
	return cur, nil
}

func (k *Kernel) sendEvent(cur *ControlBlock, id EventID) (*ControlBlock, error) {
	target, err := k.registry.Get(id)
	if err != nil {
		return nil, k.fatal(err, "SendEvent")
	}
	return k.signal(cur, target), nil
}

// signal makes target ready on behalf of cur.
func (k *Kernel) signal(cur, target *ControlBlock) *ControlBlock {
	if target.ID == IdleEvent || target == cur || target.queued {
		k.logf(k.Config.TraceSched, "sched", "%s already pending, signal from %s coalesced", target, cur)
		k.record(trace.OP_COALESCE, target.ID, 0, 0)
		return cur
	}
	if !target.Bound() {
		k.warnf("%s has no handler, signal from %s dropped", target, cur)
		return cur
	}
	k.record(trace.OP_SIGNAL, target.ID, 0, 0)
	return k.sched.OnTaskCreated(cur, target)
}

func (k *Kernel) eventHandlerReturn(cur *ControlBlock) (*ControlBlock, error) {
	if cur.ID == IdleEvent {
		return nil, k.fatal(nil, "idle event returned")
	}
	if err := k.stack.Pop(cur); err != nil {
		return nil, k.fatal(err, "EventHandlerReturn")
	}
	cur.started = false
	return k.sched.OnTaskTerminated(cur), nil
}

func (k *Kernel) readSensor(cur *ControlBlock, id SensorID) (*ControlBlock, error) {
	return k.ret(cur, k.sensors.Read(id))
}

func (k *Kernel) sendData(cur *ControlBlock, buf Ptr, n Len) (*ControlBlock, error) {
	var sent uint32
	if n > MaxSendData {
		k.warnf("%s: SendData of %d bytes exceeds %d", cur, n, MaxSendData)
		return k.ret(cur, 0)
	}
	p := make([]byte, n)
	if err := k.platform.MemReadInto(p, uint64(buf)); err != nil {
		k.warnf("%s: SendData: %v", cur, err)
		return k.ret(cur, 0)
	}
	count, err := k.serial.Send(p)
	if err != nil {
		k.warnf("%s: SendData: %v", cur, err)
	}
	sent = uint32(count)
	return k.ret(cur, sent)
}

func (k *Kernel) print(cur *ControlBlock, format string, a0, a1, a2 uint32) (*ControlBlock, error) {
	s := k.sprintf(format, a0, a1, a2)
	if _, err := k.serial.Send([]byte(s)); err != nil {
		k.warnf("%s: Print: %v", cur, err)
	}
	return cur, nil
}

func (k *Kernel) ret(cur *ControlBlock, val uint32) (*ControlBlock, error) {
	if err := cur.SetReturn(k.platform, val); err != nil {
		return nil, k.fatal(err, "stage return value for %s", cur)
	}
	return cur, nil
}

func (k *Kernel) timerTick(cur *ControlBlock) *ControlBlock {
	k.countdown--
	if k.countdown > 0 {
		return cur
	}
	k.resetCountdown()
	return k.signal(cur, k.periodic)
}

// serialReceive takes one message off the line and acknowledges the
// interrupt. A partial frame stays in the FIFO for the next interrupt.
func (k *Kernel) serialReceive(cur *ControlBlock) *ControlBlock {
	defer k.serial.ClearInterrupt()
	if n := k.serial.Buffered(); n < serial.MessageSize {
		k.logf(k.Config.TraceIrq, "irq", "serial: %d of %d bytes, waiting", n, serial.MessageSize)
		return cur
	}
	msg, err := serial.Receive(k.serial)
	if err != nil {
		k.warnf("serial receive: %v", err)
		return cur
	}
	k.logf(k.Config.TraceIrq, "irq", "serial %v", msg)
	switch msg.Type {
	case serial.ChangeSoilMoisture:
		k.sensors.Write(SensorSoilMoisture, msg.Payload)
	default:
		k.warnf("serial receive: unhandled message %v", msg)
	}
	return cur
}

func (k *Kernel) fault(cur *ControlBlock, t Trap) error {
	f, err := k.stack.ReadFrame(cur.SP)
	if err != nil {
		return k.fatal(err, "%s", t)
	}
	return k.fatal(nil, "%s at pc=%#08x lr=%#08x", t, f.PC, f.LR)
}

func (k *Kernel) unknown(cur *ControlBlock, t Trap) *ControlBlock {
	k.warnf("%s: unknown %s ignored", cur, t)
	k.record(trace.OP_UNKNOWN, cur.ID, t.Num, 0)
	return cur
}
