package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/muurk/probekit/internal/probedata"
)

func requestPayload(t *testing.T, data []byte, want MessageType) []byte {
	t.Helper()
	f, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if f.Type != want {
		t.Fatalf("type = %s, want %s", f.Type, want)
	}
	return f.Payload
}

func TestRequestBuilders(t *testing.T) {
	var alarms probedata.AlarmTable
	alarmBytes := alarms.Bytes()
	fsCfg := probedata.NewIntegratedConfig(probedata.IntegratedPoultry, probedata.ServedImmediately)
	fsBytes := fsCfg.Bytes()

	tests := []struct {
		name    string
		build   func() ([]byte, error)
		msgType MessageType
		payload []byte
		wantErr error
	}{
		{name: "set id", build: func() ([]byte, error) { return SetProbeIDRequest(3) }, msgType: MessageTypeSetProbeID, payload: []byte{0x02}},
		{name: "set id 8", build: func() ([]byte, error) { return SetProbeIDRequest(8) }, msgType: MessageTypeSetProbeID, payload: []byte{0x07}},
		{name: "set id 0", build: func() ([]byte, error) { return SetProbeIDRequest(0) }, wantErr: ErrParameterOutOfRange},
		{name: "set id 9", build: func() ([]byte, error) { return SetProbeIDRequest(9) }, wantErr: ErrParameterOutOfRange},
		{name: "set color", build: func() ([]byte, error) { return SetProbeColorRequest(probedata.ColorOrange) }, msgType: MessageTypeSetProbeColor, payload: []byte{0x03}},
		{name: "set color invalid", build: func() ([]byte, error) { return SetProbeColorRequest(8) }, wantErr: ErrParameterOutOfRange},
		{name: "session info", build: ReadSessionInfoRequest, msgType: MessageTypeReadSessionInfo, payload: []byte{}},
		{name: "read logs", build: func() ([]byte, error) { return ReadLogsRequest(1, 0x0102) }, msgType: MessageTypeReadLogs, payload: []byte{1, 0, 0, 0, 0x02, 0x01, 0, 0}},
		{name: "read logs empty range", build: func() ([]byte, error) { return ReadLogsRequest(5, 4) }, wantErr: ErrParameterOutOfRange},
		{
			name:    "set prediction",
			build:   func() ([]byte, error) { return SetPredictionRequest(probedata.PredictionModeTimeToRemoval, 63.0) },
			msgType: MessageTypeSetPrediction,
			payload: []byte{0x76, 0x06}, // 630 | 1<<10
		},
		{
			name:    "set prediction at maximum",
			build:   func() ([]byte, error) { return SetPredictionRequest(probedata.PredictionModeRemovalAndResting, MaxSetPoint) },
			msgType: MessageTypeSetPrediction,
			payload: []byte{0xFF, 0x0B},
		},
		{name: "set prediction too hot", build: func() ([]byte, error) { return SetPredictionRequest(probedata.PredictionModeTimeToRemoval, 102.4) }, wantErr: ErrParameterOutOfRange},
		{name: "set prediction negative", build: func() ([]byte, error) { return SetPredictionRequest(probedata.PredictionModeTimeToRemoval, -1) }, wantErr: ErrParameterOutOfRange},
		{name: "set prediction reserved mode", build: func() ([]byte, error) { return SetPredictionRequest(probedata.PredictionModeReserved, 50) }, wantErr: ErrParameterOutOfRange},
		{name: "cancel prediction", build: CancelPredictionRequest, msgType: MessageTypeSetPrediction, payload: []byte{0, 0}},
		{name: "over temperature", build: ReadOverTemperatureRequest, msgType: MessageTypeReadOverTemperature, payload: []byte{}},
		{name: "configure food safe", build: func() ([]byte, error) { return ConfigureFoodSafeRequest(fsCfg) }, msgType: MessageTypeConfigureFoodSafe, payload: fsBytes[:]},
		{name: "reset food safe", build: ResetFoodSafeRequest, msgType: MessageTypeResetFoodSafe, payload: []byte{}},
		{name: "power mode", build: func() ([]byte, error) { return SetPowerModeRequest(probedata.PowerAlwaysOn) }, msgType: MessageTypeSetPowerMode, payload: []byte{0x01}},
		{name: "power mode reserved", build: func() ([]byte, error) { return SetPowerModeRequest(3) }, wantErr: ErrParameterOutOfRange},
		{name: "reset thermometer", build: ResetThermometerRequest, msgType: MessageTypeResetThermometer, payload: []byte{}},
		{name: "set alarms", build: func() ([]byte, error) { return SetAlarmsRequest(alarms) }, msgType: MessageTypeSetHighLowAlarms, payload: alarmBytes[:]},
		{name: "silence alarms", build: SilenceAlarmsRequest, msgType: MessageTypeSilenceAlarms, payload: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.build()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := requestPayload(t, data, tt.msgType)
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload = % X, want % X", got, tt.payload)
			}
		})
	}
}
