package transport

import "testing"

func TestEndpoints(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		service string
		char    string
	}{
		{name: "status", ep: ProbeStatus, service: "00000100-caab-3792-3d44-97ae51c1407a", char: "00000101-caab-3792-3d44-97ae51c1407a"},
		{name: "uart rx", ep: UARTRx, service: "6e400001-b5a3-f393-e0a9-e50e24dcca9e", char: "6e400002-b5a3-f393-e0a9-e50e24dcca9e"},
		{name: "uart tx", ep: UARTTx, service: "6e400001-b5a3-f393-e0a9-e50e24dcca9e", char: "6e400003-b5a3-f393-e0a9-e50e24dcca9e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ep.Service.String(); got != tt.service {
				t.Errorf("service = %s, want %s", got, tt.service)
			}
			if got := tt.ep.Characteristic.String(); got != tt.char {
				t.Errorf("characteristic = %s, want %s", got, tt.char)
			}
		})
	}

	seen := map[string]bool{}
	for _, ep := range Endpoints() {
		if seen[ep.Name] {
			t.Errorf("duplicate endpoint name %q", ep.Name)
		}
		seen[ep.Name] = true
	}
}
