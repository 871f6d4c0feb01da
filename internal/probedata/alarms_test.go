package probedata

import (
	"math"
	"testing"
)

func TestAlarmThresholdRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   AlarmThreshold
	}{
		{name: "set and alarming at 63C", in: AlarmThreshold{Set: true, Alarming: true, Temperature: 63.0}},
		{name: "tripped only", in: AlarmThreshold{Tripped: true, Temperature: -20.0}},
		{name: "all flags", in: AlarmThreshold{Set: true, Tripped: true, Alarming: true, Temperature: 250.5}},
		{name: "unset", in: AlarmThreshold{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlarmThresholdFromBytes(tt.in.Bytes())
			if got.Set != tt.in.Set || got.Tripped != tt.in.Tripped || got.Alarming != tt.in.Alarming {
				t.Errorf("flags = %+v, want %+v", got, tt.in)
			}
			want := math.Max(tt.in.Temperature, -20)
			if math.Abs(got.Temperature-want) > 0.1 {
				t.Errorf("Temperature = %v, want %v", got.Temperature, want)
			}
		})
	}
}

func TestAlarmThresholdWireLayout(t *testing.T) {
	a := AlarmThreshold{Set: true, Tripped: false, Alarming: true, Temperature: 63.0}
	// raw temperature 830 << 3 | alarming<<2 | set
	const want = uint16(830<<3 | 1<<2 | 1)
	if got := a.Word(); got != want {
		t.Errorf("Word() = %#04x, want %#04x", got, want)
	}
	b := a.Bytes()
	if b[0] != byte(want&0xFF) || b[1] != byte(want>>8) {
		t.Errorf("Bytes() = % X, want little-endian %#04x", b, want)
	}
}

func TestAlarmThresholdClampsTemperature(t *testing.T) {
	a := AlarmThreshold{Set: true, Temperature: 5000}
	got := AlarmThresholdFromBytes(a.Bytes())
	if math.Abs(got.Temperature-(0x1FFF*0.1-20)) > 1e-6 {
		t.Errorf("clamped Temperature = %v", got.Temperature)
	}
	if !got.Set {
		t.Error("clamping spilled into flag bits")
	}
}

func TestAlarmTableLayout(t *testing.T) {
	var table AlarmTable
	if err := table.SetHigh(AlarmCore, 70); err != nil {
		t.Fatalf("SetHigh() error = %v", err)
	}
	if err := table.SetLow(AlarmT1, 2); err != nil {
		t.Fatalf("SetLow() error = %v", err)
	}
	table.High[AlarmAmbient].Alarming = true

	b := table.Bytes()
	if len(b) != 44 {
		t.Fatalf("len = %d, want 44", len(b))
	}

	core := AlarmThresholdFromBytes([2]byte{b[16], b[17]})
	if !core.Set || math.Abs(core.Temperature-70) > 0.1 {
		t.Errorf("high core at bytes 16-17 = %+v", core)
	}
	lowT1 := AlarmThresholdFromBytes([2]byte{b[22], b[23]})
	if !lowT1.Set || math.Abs(lowT1.Temperature-2) > 0.1 {
		t.Errorf("low T1 at bytes 22-23 = %+v", lowT1)
	}

	got := AlarmTableFromBytes(b)
	if !got.High[AlarmCore].Set || !got.Low[AlarmT1].Set {
		t.Errorf("AlarmTableFromBytes() lost settings: %+v", got)
	}
	if !got.Alarming() {
		t.Error("Alarming() = false")
	}
	if got.Tripped() {
		t.Error("Tripped() = true")
	}
	if got.Silenced().Alarming() {
		t.Error("Silenced() still alarming")
	}
}

func TestAlarmTableInvalidSensor(t *testing.T) {
	var table AlarmTable
	if err := table.SetHigh(AlarmSensor(11), 50); err == nil {
		t.Error("SetHigh(11) expected error")
	}
	if err := table.SetLow(AlarmSensor(-1), 50); err == nil {
		t.Error("SetLow(-1) expected error")
	}
}

func TestParseAlarmSensor(t *testing.T) {
	tests := []struct {
		in      string
		want    AlarmSensor
		wantErr bool
	}{
		{in: "T1", want: AlarmT1},
		{in: "t8", want: AlarmT8},
		{in: "core", want: AlarmCore},
		{in: "Surface", want: AlarmSurface},
		{in: "AMBIENT", want: AlarmAmbient},
		{in: "T9", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAlarmSensor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlarmSensor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseAlarmSensor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPreferences(t *testing.T) {
	tests := []struct {
		in   byte
		want PowerMode
	}{
		{in: 0x00, want: PowerNormal},
		{in: 0x01, want: PowerAlwaysOn},
		{in: 0x02, want: PowerNormal},
		{in: 0x03, want: PowerNormal},
		{in: 0xFD, want: PowerAlwaysOn},
	}
	for _, tt := range tests {
		got := PreferencesFromByte(tt.in)
		if got.PowerMode != tt.want {
			t.Errorf("PreferencesFromByte(%#02x) = %v, want %v", tt.in, got.PowerMode, tt.want)
		}
	}
	if b := (Preferences{PowerMode: PowerAlwaysOn}).Byte(); b != 0x01 {
		t.Errorf("Byte() = %#02x, want 0x01", b)
	}
}
