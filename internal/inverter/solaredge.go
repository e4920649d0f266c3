package inverter

import (
	"fmt"
	"math"
	"time"

	"solarwatch/internal/modbus"
)

// SolarEdge reads one inverter's SunSpec registers through a Modbus client.
type SolarEdge struct {
	client *modbus.Client
}

func NewSolarEdge(client *modbus.Client) *SolarEdge {
	return &SolarEdge{client: client}
}

func applyScale(value float64, scale int16) *float64 {
	scaled := value * math.Pow10(int(scale))
	return &scaled
}

// ReadSnapshot reads identity and telemetry for one inverter. Individual
// telemetry reads may fail without failing the snapshot; the corresponding
// field stays nil. Identity or status failures fail the whole read.
func (s *SolarEdge) ReadSnapshot(name string) (*Snapshot, error) {
	snap := &Snapshot{
		Name:      name,
		Serial:    "unknown",
		Model:     "unknown",
		Timestamp: time.Now().UTC(),
	}

	serial, err := s.client.ReadString(RegSerialNumber, regStringLen)
	if err != nil {
		return nil, fmt.Errorf("failed to read serial number: %w", err)
	}
	if serial != "" {
		snap.Serial = serial
	}

	if model, err := s.client.ReadString(RegModel, regStringLen); err == nil && model != "" {
		snap.Model = model
	}

	status, err := s.client.ReadUint16(RegStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	snap.Status = int(status)

	if pac, err := s.client.ReadInt16(RegACPower); err == nil {
		if sf, err := s.client.ReadInt16(RegACPowerScale); err == nil {
			snap.PacW = applyScale(float64(pac), sf)
		}
	}

	if vdc, err := s.client.ReadUint16(RegDCVoltage); err == nil {
		if sf, err := s.client.ReadInt16(RegDCVoltageScale); err == nil {
			snap.VdcV = applyScale(float64(vdc), sf)
		}
	}

	if idc, err := s.client.ReadUint16(RegDCCurrent); err == nil {
		if sf, err := s.client.ReadInt16(RegDCCurrentScale); err == nil {
			snap.IdcA = applyScale(float64(idc), sf)
		}
	}

	if wh, err := s.client.ReadUint32(RegACEnergyWh); err == nil {
		if sf, err := s.client.ReadInt16(RegACEnergyScale); err == nil {
			snap.TotalWh = applyScale(float64(wh), sf)
		}
	}

	return snap, nil
}

// TestConnection verifies the inverter answers SunSpec reads at all.
func (s *SolarEdge) TestConnection() error {
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if _, err := s.client.ReadString(RegSerialNumber, regStringLen); err != nil {
		return fmt.Errorf("failed to read from inverter: %w", err)
	}

	return nil
}
