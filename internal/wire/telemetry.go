package wire

import "google.golang.org/protobuf/encoding/protowire"

const (
	telTime        protowire.Number = 1
	telDevice      protowire.Number = 2
	telEnvironment protowire.Number = 3
	telPower       protowire.Number = 5
)

const (
	devBatteryLevel       protowire.Number = 1
	devVoltage            protowire.Number = 2
	devChannelUtilization protowire.Number = 3
	devAirUtilTx          protowire.Number = 4
	devUptimeSeconds      protowire.Number = 5
)

const (
	envTemperature        protowire.Number = 1
	envRelativeHumidity   protowire.Number = 2
	envBarometricPressure protowire.Number = 3
	envGasResistance      protowire.Number = 4
	envIAQ                protowire.Number = 7
	envLux                protowire.Number = 9
	envIRLux              protowire.Number = 11
)

const (
	pwrCh1Voltage protowire.Number = 1
	pwrCh1Current protowire.Number = 2
	pwrCh2Voltage protowire.Number = 3
	pwrCh2Current protowire.Number = 4
	pwrCh3Voltage protowire.Number = 5
	pwrCh3Current protowire.Number = 6
)

// Telemetry is the TELEMETRY_APP payload. At most one of the variants is set.
type Telemetry struct {
	Time        uint32
	Device      *DeviceMetrics
	Environment *EnvironmentMetrics
	Power       *PowerMetrics
}

type DeviceMetrics struct {
	BatteryLevel       uint32
	Voltage            float32
	ChannelUtilization float32
	AirUtilTx          float32
	UptimeSeconds      uint32
}

type EnvironmentMetrics struct {
	Temperature        float32
	RelativeHumidity   float32
	BarometricPressure float32
	GasResistance      float32
	IAQ                uint32
	Lux                float32
	IRLux              float32
}

type PowerMetrics struct {
	Ch1Voltage float32
	Ch1Current float32
	Ch2Voltage float32
	Ch2Current float32
	Ch3Voltage float32
	Ch3Current float32
}

func ParseTelemetry(b []byte) (Telemetry, error) {
	var t Telemetry
	err := walk(b, func(f field) error {
		switch f.num {
		case telTime:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			t.Time = f.u32()
		case telDevice:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			m, err := parseDeviceMetrics(f.b)
			if err != nil {
				return err
			}
			t.Device = &m
		case telEnvironment:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			m, err := parseEnvironmentMetrics(f.b)
			if err != nil {
				return err
			}
			t.Environment = &m
		case telPower:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			m, err := parsePowerMetrics(f.b)
			if err != nil {
				return err
			}
			t.Power = &m
		}
		return nil
	})
	return t, err
}

func parseDeviceMetrics(b []byte) (DeviceMetrics, error) {
	var m DeviceMetrics
	err := walk(b, func(f field) error {
		switch f.num {
		case devBatteryLevel, devUptimeSeconds:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			if f.num == devBatteryLevel {
				m.BatteryLevel = f.u32()
			} else {
				m.UptimeSeconds = f.u32()
			}
		case devVoltage, devChannelUtilization, devAirUtilTx:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			switch f.num {
			case devVoltage:
				m.Voltage = f.f32()
			case devChannelUtilization:
				m.ChannelUtilization = f.f32()
			case devAirUtilTx:
				m.AirUtilTx = f.f32()
			}
		}
		return nil
	})
	return m, err
}

func parseEnvironmentMetrics(b []byte) (EnvironmentMetrics, error) {
	var m EnvironmentMetrics
	err := walk(b, func(f field) error {
		switch f.num {
		case envIAQ:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			m.IAQ = f.u32()
		case envTemperature, envRelativeHumidity, envBarometricPressure, envGasResistance, envLux, envIRLux:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			switch f.num {
			case envTemperature:
				m.Temperature = f.f32()
			case envRelativeHumidity:
				m.RelativeHumidity = f.f32()
			case envBarometricPressure:
				m.BarometricPressure = f.f32()
			case envGasResistance:
				m.GasResistance = f.f32()
			case envLux:
				m.Lux = f.f32()
			case envIRLux:
				m.IRLux = f.f32()
			}
		}
		return nil
	})
	return m, err
}

func parsePowerMetrics(b []byte) (PowerMetrics, error) {
	var m PowerMetrics
	err := walk(b, func(f field) error {
		if f.num < pwrCh1Voltage || f.num > pwrCh3Current {
			return nil
		}
		if err := f.want(protowire.Fixed32Type); err != nil {
			return err
		}
		v := f.f32()
		switch f.num {
		case pwrCh1Voltage:
			m.Ch1Voltage = v
		case pwrCh1Current:
			m.Ch1Current = v
		case pwrCh2Voltage:
			m.Ch2Voltage = v
		case pwrCh2Current:
			m.Ch2Current = v
		case pwrCh3Voltage:
			m.Ch3Voltage = v
		case pwrCh3Current:
			m.Ch3Current = v
		}
		return nil
	})
	return m, err
}

func AppendTelemetry(b []byte, t Telemetry) []byte {
	b = appendFixed32(b, telTime, t.Time)
	if d := t.Device; d != nil {
		var m []byte
		m = appendVarint(m, devBatteryLevel, uint64(d.BatteryLevel))
		m = appendFloat(m, devVoltage, d.Voltage)
		m = appendFloat(m, devChannelUtilization, d.ChannelUtilization)
		m = appendFloat(m, devAirUtilTx, d.AirUtilTx)
		m = appendVarint(m, devUptimeSeconds, uint64(d.UptimeSeconds))
		b = appendMessage(b, telDevice, m)
	}
	if e := t.Environment; e != nil {
		var m []byte
		m = appendFloat(m, envTemperature, e.Temperature)
		m = appendFloat(m, envRelativeHumidity, e.RelativeHumidity)
		m = appendFloat(m, envBarometricPressure, e.BarometricPressure)
		m = appendFloat(m, envGasResistance, e.GasResistance)
		m = appendVarint(m, envIAQ, uint64(e.IAQ))
		m = appendFloat(m, envLux, e.Lux)
		m = appendFloat(m, envIRLux, e.IRLux)
		b = appendMessage(b, telEnvironment, m)
	}
	if p := t.Power; p != nil {
		var m []byte
		m = appendFloat(m, pwrCh1Voltage, p.Ch1Voltage)
		m = appendFloat(m, pwrCh1Current, p.Ch1Current)
		m = appendFloat(m, pwrCh2Voltage, p.Ch2Voltage)
		m = appendFloat(m, pwrCh2Current, p.Ch2Current)
		m = appendFloat(m, pwrCh3Voltage, p.Ch3Voltage)
		m = appendFloat(m, pwrCh3Current, p.Ch3Current)
		b = appendMessage(b, telPower, m)
	}
	return b
}
