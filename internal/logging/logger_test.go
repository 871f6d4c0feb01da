package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		env     string
		wantErr bool
		enabled zapcore.Level
		silent  bool
	}{
		{name: "silent by default", silent: true},
		{name: "explicit debug", level: "debug", enabled: zapcore.DebugLevel},
		{name: "from env", env: "warn", enabled: zapcore.WarnLevel},
		{name: "unknown level", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(LogLevelEnvVar, tt.env)
			err := Initialize(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			core := GetLogger().Core()
			if tt.silent {
				if core.Enabled(zapcore.ErrorLevel) {
					t.Error("silent logger should not enable any level")
				}
				return
			}
			if !core.Enabled(tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && core.Enabled(tt.enabled-1) {
				t.Errorf("level %s should be disabled", tt.enabled-1)
			}
		})
	}
	SetLogger(zap.NewNop())
}

func TestLogFrame(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogFrame("10005A3C", "tx", []byte{0xCA, 0xFE, 0x01})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["hex"] != "cafe01" {
		t.Errorf("hex = %v, want cafe01", fields["hex"])
	}
	if fields["serial"] != "10005A3C" || fields["direction"] != "tx" {
		t.Errorf("fields = %v", fields)
	}
}

func TestHexDumpTruncates(t *testing.T) {
	data := make([]byte, 300)
	got := hexDump(data)
	if len(got) != 512+3 {
		t.Errorf("hexDump length = %d, want %d", len(got), 515)
	}
	if asciiDump([]byte("ok\x00")) != "ok." {
		t.Errorf("asciiDump() = %q", asciiDump([]byte("ok\x00")))
	}
}

func TestLogRawBytesOnlyAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogRawBytes("Undecodable advertisement", []byte{0x01, 0x02})
	if logs.Len() != 0 {
		t.Fatalf("info logger recorded %d entries, want 0", logs.Len())
	}

	core, logs = observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	LogRawBytes("Undecodable advertisement", []byte("A\x02"))
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["hex"] != "4102" || fields["ascii"] != "A." {
		t.Errorf("fields = %v", fields)
	}
}
