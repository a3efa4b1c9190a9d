package serial

import (
	"bytes"
	"testing"
)

func TestMessageWire(t *testing.T) {
	if MessageSize != 8 {
		t.Fatalf("message size %d", MessageSize)
	}
	m := NewMessage(ChangeSoilMoisture, 0x1234)
	want := []byte{0x57, 0x46, 0x03, 0x00, 0x34, 0x12, 0x00, 0x00}
	if got := m.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("wire bytes % x != % x", got, want)
	}
	if m.String() != "ChangeSoilMoisture(4660)" {
		t.Fatalf("bad string %q", m.String())
	}
}

func TestUartReceive(t *testing.T) {
	raised := 0
	u := NewUart(nil, func() { raised++ })
	u.InjectMessage(NewMessage(ChangeSoilMoisture, 100))
	if u.Pending() {
		t.Fatal("line asserted with interrupt disabled")
	}
	if raised != 0 {
		t.Fatal("notify without interrupt enabled")
	}
	u.EnableRxInterrupt(true)
	if !u.Pending() || raised != 1 {
		t.Fatal("enabling with latched data should raise the line")
	}
	u.InjectMessage(NewMessage(ChangeSoilMoisture, 200))
	if raised != 2 {
		t.Fatal("inject should notify")
	}

	m, err := Receive(u)
	if err != nil {
		t.Fatal(err)
	}
	if m.Payload != 100 {
		t.Fatalf("first payload %d", m.Payload)
	}
	u.ClearInterrupt()
	if !u.Pending() {
		t.Fatal("second message should keep the line asserted")
	}
	m, err = Receive(u)
	if err != nil || m.Payload != 200 {
		t.Fatalf("second message %v %v", m, err)
	}
	u.ClearInterrupt()
	if u.Pending() {
		t.Fatal("line still asserted after draining")
	}
	if _, err := Receive(u); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestReceiveErrors(t *testing.T) {
	u := NewUart(nil, nil)
	u.Inject([]byte{0x57, 0x46, 0x03})
	if _, err := Receive(u); err == nil || err == ErrEmpty {
		t.Fatalf("truncated frame: %v", err)
	}
	u.Inject([]byte{0, 0, 3, 0, 5, 0, 0, 0})
	if m, err := Receive(u); err == nil || m.Payload != 5 {
		t.Fatalf("bad magic accepted: %v %v", m, err)
	}
}

func TestSend(t *testing.T) {
	var buf bytes.Buffer
	u := NewUart(&buf, nil)
	if err := Send(u, NewMessage(SoilWetAlert, 0)); err != nil {
		t.Fatal(err)
	}
	m, err := Unpack(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != SoilWetAlert {
		t.Fatalf("sent %v", m)
	}
}

func TestParse(t *testing.T) {
	m, err := Parse("moisture", 42)
	if err != nil || m.Type != ChangeSoilMoisture || m.Payload != 42 {
		t.Fatalf("%v %v", m, err)
	}
	m, err = Parse("SoilDryAlert", 0)
	if err != nil || m.Type != SoilDryAlert {
		t.Fatalf("%v %v", m, err)
	}
	if _, err := Parse("flood", 0); err == nil {
		t.Fatal("parsed unknown message")
	}
}

func TestUartWatermark(t *testing.T) {
	raised := 0
	u := NewUart(nil, func() { raised++ })
	u.EnableRxInterrupt(true)
	p := NewMessage(ChangeSoilMoisture, 250).Bytes()
	u.Inject(p[:4])
	if u.Pending() || raised != 0 {
		t.Fatal("half a frame raised the line")
	}
	u.Inject(p[4:])
	if !u.Pending() || raised != 1 {
		t.Fatal("full frame did not raise the line")
	}
	m, err := Receive(u)
	if err != nil || m.Payload != 250 {
		t.Fatalf("%v %v", m, err)
	}
	u.ClearInterrupt()
	u.Inject(p[:2])
	if u.Pending() || raised != 1 {
		t.Fatal("line asserted below the watermark")
	}

	u.SetRxWatermark(1)
	if !u.Pending() || raised != 2 {
		t.Fatal("lowering the watermark should raise the line")
	}
}
