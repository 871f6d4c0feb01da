package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/muurk/probekit/internal/probedata"
)

func TestParseSessionInfo(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    SessionInfo
		wantErr error
	}{
		{
			name:    "one second period",
			payload: []byte{0x78, 0x56, 0x34, 0x12, 0xE8, 0x03},
			want:    SessionInfo{SessionID: 0x12345678, SamplePeriod: time.Second},
		},
		{
			name:    "short",
			payload: []byte{0x78, 0x56, 0x34, 0x12, 0xE8},
			wantErr: ErrLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSessionInfo(tt.payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseSessionInfo() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSessionInfo() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSessionInfo() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLogRecord(t *testing.T) {
	sensors := probedata.InvalidSensors()
	sensors[3] = probedata.ReadingFromCelsius(55.5)
	pl := probedata.PredictionLog{
		Virtual:  probedata.VirtualSelection{Core: 1, Surface: 2},
		State:    probedata.PredictionPredicting,
		Mode:     probedata.PredictionModeTimeToRemoval,
		Type:     probedata.PredictionTypeRemoval,
		SetPoint: 60.0,
		Seconds:  1234,
	}

	tests := []struct {
		name           string
		rec            LogRecord
		truncate       int
		wantPrediction bool
		wantErr        error
	}{
		{name: "with prediction", rec: LogRecord{Sequence: 77, Sensors: sensors, Prediction: &pl}, wantPrediction: true},
		{name: "without prediction", rec: LogRecord{Sequence: 78, Sensors: sensors}},
		{name: "partial prediction ignored", rec: LogRecord{Sequence: 79, Sensors: sensors, Prediction: &pl}, truncate: 3},
		{name: "short", rec: LogRecord{Sequence: 80, Sensors: sensors}, truncate: 1, wantErr: ErrLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.rec.Bytes()
			data = data[:len(data)-tt.truncate]

			got, err := ParseLogRecord(data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseLogRecord() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLogRecord() unexpected error: %v", err)
			}
			if got.Sequence != tt.rec.Sequence {
				t.Errorf("sequence = %d, want %d", got.Sequence, tt.rec.Sequence)
			}
			if got.Sensors != sensors {
				t.Errorf("sensors = %v, want %v", got.Sensors, sensors)
			}
			if (got.Prediction != nil) != tt.wantPrediction {
				t.Fatalf("prediction present = %v, want %v", got.Prediction != nil, tt.wantPrediction)
			}
			if tt.wantPrediction && got.Prediction.Seconds != 1234 {
				t.Errorf("prediction seconds = %d, want 1234", got.Prediction.Seconds)
			}
		})
	}
}

func TestResponseDecode(t *testing.T) {
	tests := []struct {
		name    string
		resp    Response
		wantErr error
		verify  func(t *testing.T, v any)
	}{
		{
			name: "session info",
			resp: Response{Type: MessageTypeReadSessionInfo.Response(), Success: true, Payload: []byte{1, 0, 0, 0, 0xF4, 0x01}},
			verify: func(t *testing.T, v any) {
				info, ok := v.(SessionInfo)
				if !ok || info.SessionID != 1 || info.SamplePeriod != 500*time.Millisecond {
					t.Errorf("Decode() = %#v", v)
				}
			},
		},
		{
			name: "over temperature",
			resp: Response{Type: MessageTypeReadOverTemperature.Response(), Success: true, Payload: []byte{0x02}},
			verify: func(t *testing.T, v any) {
				if o, ok := v.(probedata.Overheat); !ok || !o.Sensor(1) {
					t.Errorf("Decode() = %#v", v)
				}
			},
		},
		{
			name: "acknowledgement",
			resp: Response{Type: MessageTypeSetProbeID.Response(), Success: true},
			verify: func(t *testing.T, v any) {
				if v != nil {
					t.Errorf("Decode() = %#v, want nil", v)
				}
			},
		},
		{
			name:    "rejected",
			resp:    Response{Type: MessageTypeSetProbeID.Response(), Success: false},
			wantErr: ErrCommandFailed,
		},
		{
			name:    "empty over temperature",
			resp:    Response{Type: MessageTypeReadOverTemperature.Response(), Success: true},
			wantErr: ErrLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.resp.Decode()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			tt.verify(t, v)
		})
	}
}
