package kernel

// SensorID selects a sensor channel.
type SensorID uint32

const (
	SensorSoilMoisture SensorID = iota
	numSensors
)

// SensorInvalid is read back for channels that do not exist.
const SensorInvalid = 0xffffffff

// Sensors holds the latest reading per channel. Serial receive writes and
// ReadSensor reads, both from the kernel's single thread, so there is no
// locking.
type Sensors struct {
	levels [numSensors]uint32
}

func NewSensors() *Sensors {
	return &Sensors{}
}

func (s *Sensors) Read(id SensorID) uint32 {
	if id >= numSensors {
		return SensorInvalid
	}
	return s.levels[id]
}

func (s *Sensors) Write(id SensorID, level uint32) bool {
	if id >= numSensors {
		return false
	}
	s.levels[id] = level
	return true
}
