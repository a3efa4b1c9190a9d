package serial

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const MAGIC = 0x4657

// message types shared with the sensor and actuator devices
const (
	MoistureUserStack  = 0
	ActuatorUserStack  = 1
	GatewayUserStack   = 2
	ChangeSoilMoisture = 3
	ChangeWaterStatus  = 4
	SoilDryAlert       = 5
	SoilWetAlert       = 6
	AckSoilWet         = 7
	RunOutOfWaterAlert = 8
)

var msgNames = map[uint16]string{
	MoistureUserStack:  "MoistureUserStack",
	ActuatorUserStack:  "ActuatorUserStack",
	GatewayUserStack:   "GatewayUserStack",
	ChangeSoilMoisture: "ChangeSoilMoisture",
	ChangeWaterStatus:  "ChangeWaterStatus",
	SoilDryAlert:       "SoilDryAlert",
	SoilWetAlert:       "SoilWetAlert",
	AckSoilWet:         "AckSoilWet",
	RunOutOfWaterAlert: "RunOutOfWaterAlert",
}

// console shorthands
var msgAliases = map[string]uint16{
	"moisture": ChangeSoilMoisture,
	"water":    ChangeWaterStatus,
	"dry":      SoilDryAlert,
	"wet":      SoilWetAlert,
	"ack":      AckSoilWet,
	"empty":    RunOutOfWaterAlert,
}

// Message is the fixed-size frame exchanged over the serial line.
type Message struct {
	Magic   uint16
	Type    uint16
	Payload uint32
}

var MessageSize, _ = struc.Sizeof(&Message{})

func NewMessage(typ uint16, payload uint32) *Message {
	return &Message{Magic: MAGIC, Type: typ, Payload: payload}
}

func (m *Message) Valid() bool {
	return m.Magic == MAGIC
}

func (m *Message) Pack(w io.Writer) error {
	return struc.PackWithOrder(w, m, binary.LittleEndian)
}

// Bytes returns the wire encoding. Message has only fixed-size integer
// fields, which struc always packs into a bytes.Buffer.
func (m *Message) Bytes() []byte {
	var buf bytes.Buffer
	if err := m.Pack(&buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (m *Message) String() string {
	name, ok := msgNames[m.Type]
	if !ok {
		name = fmt.Sprintf("type(%d)", m.Type)
	}
	return fmt.Sprintf("%s(%d)", name, m.Payload)
}

func Unpack(r io.Reader) (*Message, error) {
	m := &Message{}
	if err := struc.UnpackWithOrder(r, m, binary.LittleEndian); err != nil {
		return nil, err
	}
	if !m.Valid() {
		return m, errors.Errorf("bad message magic %#04x", m.Magic)
	}
	return m, nil
}

// Parse builds a message from a type name or its console shorthand:
// "moisture", "water", "dry", "wet", "ack", "empty".
func Parse(name string, payload uint32) (*Message, error) {
	if typ, ok := msgAliases[name]; ok {
		return NewMessage(typ, payload), nil
	}
	for typ, full := range msgNames {
		if full == name {
			return NewMessage(typ, payload), nil
		}
	}
	return nil, errors.Errorf("unknown message %q", name)
}
