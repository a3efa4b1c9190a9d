package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/board"
	"github.com/lunixbochs/evcorn/go/cpu/mcu"
	"github.com/lunixbochs/evcorn/go/kernel"
	"github.com/lunixbochs/evcorn/go/models"
	"github.com/lunixbochs/evcorn/go/serial"
)

type firmware struct {
	b   *board.Board
	k   *kernel.Kernel
	img *board.Image
	log bytes.Buffer
}

func bootWith(t *testing.T, moisture uint32, tx interface{ Write([]byte) (int, error) }) *firmware {
	fw := &firmware{}
	config := models.DefaultConfig()
	config.Output = &fw.log
	config.TimerReload = 100
	config.PeriodicTicks = 1
	config.Budget = 1000
	img, err := Build(config)
	if err != nil {
		t.Fatal(err)
	}
	b, k, err := board.Boot(config, img, tx)
	if err != nil {
		t.Fatal(err)
	}
	b.Uart.InjectMessage(serial.NewMessage(serial.ChangeSoilMoisture, moisture))
	fw.b, fw.k, fw.img = b, k, img
	return fw
}

func boot(t *testing.T, moisture uint32) (*firmware, *bytes.Buffer) {
	var tx bytes.Buffer
	return bootWith(t, moisture, &tx), &tx
}

// run continues for another budget of cycles.
func (fw *firmware) run(t *testing.T) {
	t.Helper()
	if err := fw.k.Run(); errors.Cause(err) != mcu.ErrBudget {
		t.Fatalf("run: %+v\n%s", err, fw.log.String())
	}
	fw.b.Cpu.Budget += 1000
}

func (fw *firmware) expectSampler(t *testing.T, label string) {
	t.Helper()
	cb, err := fw.k.Registry().Get(EventSample)
	if err != nil {
		t.Fatal(err)
	}
	if want := kernel.Ptr(fw.img.Symbols[label]); cb.Handler != want {
		t.Fatalf("sampler bound to %#x, wanted %s at %#x", cb.Handler, label, want)
	}
}

var (
	dryAlert = serial.NewMessage(serial.SoilDryAlert, 0).Bytes()
	wetAlert = serial.NewMessage(serial.SoilWetAlert, 0).Bytes()
)

func TestDrySoil(t *testing.T) {
	fw, tx := boot(t, 20)
	fw.run(t)
	var want bytes.Buffer
	want.WriteString("moisture 20%\n")
	want.Write(dryAlert)
	want.WriteString("dry alert sent\n")
	if !bytes.HasPrefix(tx.Bytes(), want.Bytes()) {
		t.Fatalf("transmitted %q, wanted prefix %q", tx.Bytes(), want.Bytes())
	}
	if n := bytes.Count(tx.Bytes(), dryAlert); n != 1 {
		t.Fatalf("%d dry alerts sent", n)
	}
	if fw.k.Sensors().Read(kernel.SensorSoilMoisture) != 20 {
		t.Fatal("sensor not updated")
	}
	fw.expectSampler(t, "watch_wet")
}

// The sampler switches watchers on each alert.
func TestHysteresis(t *testing.T) {
	fw, tx := boot(t, 20)
	fw.run(t)
	fw.expectSampler(t, "watch_wet")

	fw.b.Uart.InjectMessage(serial.NewMessage(serial.ChangeSoilMoisture, 40))
	fw.run(t)
	if bytes.Contains(tx.Bytes(), wetAlert) {
		t.Fatal("wet alert between thresholds")
	}
	fw.expectSampler(t, "watch_wet")

	fw.b.Uart.InjectMessage(serial.NewMessage(serial.ChangeSoilMoisture, 80))
	fw.run(t)
	if n := bytes.Count(tx.Bytes(), wetAlert); n != 1 {
		t.Fatalf("%d wet alerts sent", n)
	}
	if !strings.Contains(tx.String(), "wet alert sent\n") {
		t.Fatalf("transmitted %q", tx.String())
	}
	fw.expectSampler(t, "watch_dry")

	fw.b.Uart.InjectMessage(serial.NewMessage(serial.ChangeSoilMoisture, 10))
	fw.run(t)
	if n := bytes.Count(tx.Bytes(), dryAlert); n != 2 {
		t.Fatalf("%d dry alerts sent", n)
	}
	fw.expectSampler(t, "watch_wet")
}

// Wet soil is not reported while the sampler watches for dry soil.
func TestWetSoilWhileWatchingDry(t *testing.T) {
	fw, tx := boot(t, 80)
	fw.run(t)
	if !strings.HasPrefix(tx.String(), "moisture 80%\nmoisture 80%\n") {
		t.Fatalf("transmitted %q", tx.String())
	}
	if bytes.Contains(tx.Bytes(), wetAlert) || bytes.Contains(tx.Bytes(), dryAlert) {
		t.Fatalf("alert sent: %q", tx.Bytes())
	}
	fw.expectSampler(t, "watch_dry")
}

func TestMoistSoil(t *testing.T) {
	fw, tx := boot(t, 40)
	fw.run(t)
	out := tx.String()
	if !strings.HasPrefix(out, "moisture 40%\nmoisture 40%\n") {
		t.Fatalf("transmitted %q", out)
	}
	if strings.Contains(out, "alert") {
		t.Fatalf("alert at a moist level: %q", out)
	}
}

type brokenLine struct{}

func (brokenLine) Write(p []byte) (int, error) { return 0, errors.New("line down") }

// An alert the actuator never got leaves the sampler on the dry watcher.
func TestAlertNotSent(t *testing.T) {
	fw := bootWith(t, 20, brokenLine{})
	fw.run(t)
	if fw.k.Halted() != nil {
		t.Fatal(fw.k.Halted())
	}
	if !strings.Contains(fw.log.String(), "SendData: line down") {
		t.Fatalf("failed send not reported:\n%s", fw.log.String())
	}
	fw.expectSampler(t, "watch_dry")
}

// The sampler and the alert handler nest on idle, never on each other.
func TestStackUnwinds(t *testing.T) {
	fw, _ := boot(t, 20)
	fw.run(t)
	k := fw.k
	if k.Halted() != nil {
		t.Fatal(k.Halted())
	}
	if d := k.Stack().Depth(); d > 2 {
		t.Fatalf("nest depth %d\n%s", d, k.Status())
	}
	used := k.Stack().Base + k.Stack().Size - k.Stack().LowWater()
	if used > 3*models.FrameSize {
		t.Fatalf("shared stack peak %d bytes", used)
	}
}
