package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/muurk/probekit/internal/probedata"
	"github.com/muurk/probekit/internal/protocol"
	"github.com/muurk/probekit/internal/version"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []byte
		wantErr bool
	}{
		{name: "plain", args: []string{"cafe01"}, want: []byte{0xCA, 0xFE, 0x01}},
		{name: "prefixed", args: []string{"0xCAFE"}, want: []byte{0xCA, 0xFE}},
		{name: "spaced args", args: []string{"ca", "fe", "01"}, want: []byte{0xCA, 0xFE, 0x01}},
		{name: "colons", args: []string{"ca:fe:01"}, want: []byte{0xCA, 0xFE, 0x01}},
		{name: "odd length", args: []string{"caf"}, wantErr: true},
		{name: "not hex", args: []string{"zz"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHex(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("parseHex() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestParsePredictionMode(t *testing.T) {
	tests := []struct {
		in      string
		want    probedata.PredictionMode
		wantErr bool
	}{
		{in: "removal", want: probedata.PredictionModeTimeToRemoval},
		{in: "Resting", want: probedata.PredictionModeRemovalAndResting},
		{in: "removal-and-resting", want: probedata.PredictionModeRemovalAndResting},
		{in: "none", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePredictionMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePredictionMode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parsePredictionMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func withFormat(t *testing.T, format string) {
	t.Helper()
	old := outputFormat
	outputFormat = format
	t.Cleanup(func() { outputFormat = old })
}

func runStream(t *testing.T, input string) string {
	t.Helper()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	if err := runDecodeStream(cmd, nil); err != nil {
		t.Fatalf("runDecodeStream() error = %v", err)
	}
	return out.String()
}

func mustResponse(t *testing.T, mt protocol.MessageType, payload []byte) string {
	t.Helper()
	data, err := protocol.BuildResponse(mt.Response(), true, payload)
	if err != nil {
		t.Fatalf("BuildResponse() error = %v", err)
	}
	return hex.EncodeToString(data)
}

func TestDecodeStreamReassembles(t *testing.T) {
	withFormat(t, "text")

	ack := mustResponse(t, protocol.MessageTypeSetProbeID, nil)
	overheat := mustResponse(t, protocol.MessageTypeReadOverTemperature, []byte{0x01})
	// Split the second response across two notifications and pack the
	// first in front of it.
	input := strings.Join([]string{
		"# captured notifications",
		ack + overheat[:6],
		"",
		overheat[6:],
	}, "\n")

	out := runStream(t, input)
	if !strings.Contains(out, "SetProbeIDResponse") {
		t.Errorf("output missing acknowledgement:\n%s", out)
	}
	if !strings.Contains(out, "ReadOverTemperatureResponse") {
		t.Errorf("output missing reassembled response:\n%s", out)
	}
	if !strings.Contains(out, "Stream decoded") {
		t.Errorf("output missing summary:\n%s", out)
	}
}

func TestDecodeStreamReportsCorruption(t *testing.T) {
	withFormat(t, "text")

	data, err := protocol.BuildResponse(protocol.MessageTypeSilenceAlarms.Response(), true, nil)
	if err != nil {
		t.Fatalf("BuildResponse() error = %v", err)
	}
	data[2] ^= 0xFF

	out := runStream(t, hex.EncodeToString(data))
	if !strings.Contains(out, "problems") {
		t.Errorf("corrupt frame should be reported:\n%s", out)
	}
}

func TestDecodeStreamJSON(t *testing.T) {
	withFormat(t, "json")

	out := runStream(t, mustResponse(t, protocol.MessageTypeReadOverTemperature, []byte{0x05}))
	var got struct {
		Success bool  `json:"Success"`
		Decoded uint8 `json:"decoded"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !got.Success || got.Decoded != 0x05 {
		t.Errorf("decoded = %+v", got)
	}
}

func TestVersionJSON(t *testing.T) {
	withFormat(t, "json")

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })
	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version error = %v", err)
	}

	var info version.Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if info.Version != version.Version {
		t.Errorf("Version = %q, want %q", info.Version, version.Version)
	}
}
