package inverter

// SunSpec register addresses for SolarEdge single/three phase inverters.
// Common block starts at 40000, inverter model (101/103) at 40069.
const (
	RegModel        uint16 = 40020 // C_Model, 16 registers
	RegSerialNumber uint16 = 40052 // C_SerialNumber, 16 registers

	RegACPower        uint16 = 40083 // I_AC_Power, int16
	RegACPowerScale   uint16 = 40084 // I_AC_Power_SF, sunssf
	RegACEnergyWh     uint16 = 40093 // I_AC_Energy_WH, acc32
	RegACEnergyScale  uint16 = 40095 // I_AC_Energy_WH_SF, sunssf
	RegDCCurrent      uint16 = 40096 // I_DC_Current, uint16
	RegDCCurrentScale uint16 = 40097 // I_DC_Current_SF, sunssf
	RegDCVoltage      uint16 = 40098 // I_DC_Voltage, uint16
	RegDCVoltageScale uint16 = 40099 // I_DC_Voltage_SF, sunssf
	RegStatus         uint16 = 40107 // I_Status, enum16
)

const regStringLen uint16 = 16
