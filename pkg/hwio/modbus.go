package hwio

import (
	"encoding/binary"
	"time"

	"github.com/goburrow/modbus"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Register map of the Modbus RTU I/O module used as dome interface board.
//
//	coils 0..7              digital outputs 1..8
//	discrete inputs 0..4    digital inputs 1..5
//	input registers 0..1    analog inputs 1..2, value in the low byte
//	input registers 8..11   counters 1..2, two registers each, high word first
//	holding registers 0..1  counter debounce in milliseconds
//	holding registers 2..3  counter reset, write 1 to zero
const (
	mbCounterBase  = 8
	mbDebounceBase = 0
	mbResetBase    = 2

	coilOn  = 0xFF00
	coilOff = 0x0000
)

// Modbus drives the interface board over a Modbus RTU serial line.
type Modbus struct {
	device  string
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// NewModbus returns a Modbus board on the given serial device. The line is
// 8N1 at the given baud rate; Open establishes the connection.
func NewModbus(device string, baud int, slaveID byte, timeout time.Duration) *Modbus {
	handler := modbus.NewRTUClientHandler(device)
	handler.BaudRate = baud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = timeout
	handler.SlaveId = slaveID
	return &Modbus{
		device:  device,
		handler: handler,
		client:  modbus.NewClient(handler),
	}
}

func (m *Modbus) Open() error {
	logrus.WithFields(logrus.Fields{
		"device": m.device,
		"baud":   m.handler.BaudRate,
		"slave":  m.handler.SlaveId,
	}).Debug("Opening modbus board")
	return pkgerrors.Wrapf(m.handler.Connect(), "opening %s", m.device)
}

func (m *Modbus) Close() error {
	return m.handler.Close()
}

func (m *Modbus) SetOutput(ch int) error {
	if err := checkOutput(ch); err != nil {
		return err
	}
	_, err := m.client.WriteSingleCoil(uint16(ch-1), coilOn)
	return pkgerrors.Wrapf(err, "setting output %d", ch)
}

func (m *Modbus) ClearOutput(ch int) error {
	if err := checkOutput(ch); err != nil {
		return err
	}
	_, err := m.client.WriteSingleCoil(uint16(ch-1), coilOff)
	return pkgerrors.Wrapf(err, "clearing output %d", ch)
}

func (m *Modbus) ReadInput(ch int) (bool, error) {
	if err := checkInput(ch); err != nil {
		return false, err
	}
	results, err := m.client.ReadDiscreteInputs(uint16(ch-1), 1)
	if err != nil {
		return false, pkgerrors.Wrapf(err, "reading input %d", ch)
	}
	return bytesToBits(results)[0], nil
}

func (m *Modbus) ReadAnalog(ch int) (uint8, error) {
	if err := checkAnalog(ch); err != nil {
		return 0, err
	}
	results, err := m.client.ReadInputRegisters(uint16(ch-1), 1)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "reading analog %d", ch)
	}
	return uint8(binary.BigEndian.Uint16(results)), nil
}

func (m *Modbus) ReadCounter(id int) (int64, error) {
	if err := checkCounter(id); err != nil {
		return 0, err
	}
	results, err := m.client.ReadInputRegisters(uint16(mbCounterBase+2*(id-1)), 2)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "reading counter %d", id)
	}
	hi := binary.BigEndian.Uint16(results[0:2])
	lo := binary.BigEndian.Uint16(results[2:4])
	return int64(uint32(hi)<<16 | uint32(lo)), nil
}

func (m *Modbus) ResetCounter(id int) error {
	if err := checkCounter(id); err != nil {
		return err
	}
	_, err := m.client.WriteSingleRegister(uint16(mbResetBase+id-1), 1)
	return pkgerrors.Wrapf(err, "resetting counter %d", id)
}

func (m *Modbus) SetCounterDebounce(id int, d time.Duration) error {
	if err := checkCounter(id); err != nil {
		return err
	}
	if err := checkDebounce(d); err != nil {
		return err
	}
	_, err := m.client.WriteSingleRegister(uint16(mbDebounceBase+id-1), uint16(d.Milliseconds()))
	return pkgerrors.Wrapf(err, "setting counter %d debounce", id)
}

func bytesToBits(bs []byte) []bool {
	var out []bool
	for _, b := range bs {
		for i := 0; i < 8; i++ {
			out = append(out, (b>>uint(i)&1) == 1)
		}
	}
	return out
}
