package hanchu

import (
	"strconv"
	"time"
)

// This file is the single normalization boundary. Loosely-typed cloud JSON
// is converted into the strict reading structs here exactly once; downstream
// consumers never re-validate.

func normalizeInverterReading(raw map[string]any, wantSerial string) (*InverterReading, error) {
	sn, ok := strField(raw, "sn")
	if !ok {
		return nil, &MalformedPayloadError{Field: "sn", Reason: "missing"}
	}
	if wantSerial != "" && sn != wantSerial {
		return nil, &MalformedPayloadError{Field: "sn", Reason: "serial mismatch"}
	}
	ts, ok := timestampField(raw, "dataTimeTs")
	if !ok {
		return nil, &MalformedPayloadError{Field: "dataTimeTs", Reason: "missing or not a number"}
	}

	reading := &InverterReading{
		SerialNumber:  sn,
		Timestamp:     ts,
		SolarPowerW:   numField(raw, "pvTtPwr"),
		LoadPowerW:    numField(raw, "loadPwr"),
		GridPowerW:    numField(raw, "pwrGridSum"),
		BatteryPowerW: numField(raw, "batP"),
		// batSoc comes as a 0..1 fraction
		BatterySocPct: clampPct(scale(numField(raw, "batSoc"), 100)),
		EnergyToday: InverterEnergyToday{
			SolarKWh:            numField(raw, "pvDge"),
			GridImportKWh:       numField(raw, "gridTdEe"),
			GridExportKWh:       numField(raw, "gridTdFe"),
			BatteryChargeKWh:    numField(raw, "batTdChg"),
			BatteryDischargeKWh: numField(raw, "batTdDschg"),
			LoadKWh:             numField(raw, "loadTdEe"),
		},
		BMSDesignCapacityKWh: numField(raw, "bmsDesignCap"),
	}

	reading.GridPhasePowerW[0] = numField(raw, "pwrL1Grid")
	reading.GridPhasePowerW[1] = numField(raw, "pwrL2Grid")
	reading.GridPhasePowerW[2] = numField(raw, "pwrL3Grid")

	if wm := numField(raw, "workMode"); wm != nil {
		mode := WorkMode(int(*wm))
		if mode.Valid() {
			reading.WorkMode = &mode
		}
	}

	return reading, nil
}

func normalizeBatteryReading(raw map[string]any, wantSerial string) (*BatteryReading, error) {
	sn, ok := strField(raw, "sn")
	if !ok {
		return nil, &MalformedPayloadError{Field: "sn", Reason: "missing"}
	}
	if wantSerial != "" && sn != wantSerial {
		return nil, &MalformedPayloadError{Field: "sn", Reason: "serial mismatch"}
	}
	ts, ok := timestampField(raw, "dataTimeTs")
	if !ok {
		return nil, &MalformedPayloadError{Field: "dataTimeTs", Reason: "missing or not a number"}
	}

	reading := &BatteryReading{
		SerialNumber: sn,
		Timestamp:    ts,
		SocPct:       clampPct(numField(raw, "rackSoc")),
		// rackPwr is reported in W
		PowerKW:                 scale(numField(raw, "rackPwr"), 0.001),
		VoltageV:                numField(raw, "rackTotalV"),
		CurrentA:                numField(raw, "rackTotalA"),
		CapacityRemainingPct:    clampPct(numField(raw, "rackCapRemain")),
		CapacityKWh:             numField(raw, "rackCapacity"),
		TempMaxC:                numField(raw, "maxT"),
		TempMinC:                numField(raw, "minT"),
		EnergyTodayChargeKWh:    numField(raw, "batTdChg"),
		EnergyTodayDischargeKWh: numField(raw, "batTdDschg"),
		EnergyTotalChargeKWh:    numField(raw, "rackTotalCharge"),
		EnergyTotalDischargeKWh: numField(raw, "rackTotalDischarge"),
		CycleCount:              numField(raw, "rackTotalLoopNum"),
		Relays: RelayStates{
			Charging:    relayField(raw, "chargingRelay"),
			Discharging: relayField(raw, "dischargingRelay"),
			Negative:    relayField(raw, "negRelay"),
			Shunt:       relayField(raw, "shuntRelay"),
			PreCharge:   relayField(raw, "preChargeRelay"),
		},
	}

	for i := range reading.ProbeTempsC {
		reading.ProbeTempsC[i] = numField(raw, "rackT"+strconv.Itoa(i+1))
	}
	for i := range reading.PackVoltagesV {
		n := strconv.Itoa(i + 1)
		reading.PackVoltagesV[i] = numField(raw, "pack"+n+"V")
		reading.PackAvgTempsC[i] = numField(raw, "pack"+n+"AvgT")
	}

	return reading, nil
}

func normalizeEnergyFlow(raw map[string]any, date string) *EnergyFlowReading {
	return &EnergyFlowReading{
		Date:                date,
		SolarKWh:            numField(raw, "pv"),
		GridImportKWh:       numField(raw, "gridImport"),
		GridExportKWh:       numField(raw, "gridExport"),
		BatteryChargeKWh:    numField(raw, "batCharge"),
		BatteryDischargeKWh: numField(raw, "batDisCharge"),
		LoadKWh:             numField(raw, "load"),
	}
}

// numField parses a field defensively: numbers and numeric strings are
// accepted, anything else yields nil (unknown), never a failure.
func numField(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	return asFloat(v)
}

func asFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func strField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func timestampField(m map[string]any, key string) (time.Time, bool) {
	v := numField(m, key)
	if v == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(*v)), true
}

func relayField(m map[string]any, key string) *bool {
	v := numField(m, key)
	if v == nil {
		return nil
	}
	closed := *v != 0
	return &closed
}

func clampPct(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if c < 0 {
		c = 0
	} else if c > 100 {
		c = 100
	}
	return &c
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v * factor
	return &s
}
