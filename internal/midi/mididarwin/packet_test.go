package mididarwin

import (
	"testing"

	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

func TestSplitPacket(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []contracts.MIDI
	}{
		{
			name: "single control change",
			data: []byte{0xB0, 7, 100},
			want: []contracts.MIDI{{Status: 0xB0, Data1: 7, Data2: 100}},
		},
		{
			name: "running status",
			data: []byte{0xB1, 7, 100, 8, 64},
			want: []contracts.MIDI{{Status: 0xB1, Data1: 7, Data2: 100}, {Status: 0xB1, Data1: 8, Data2: 64}},
		},
		{
			name: "program change is two bytes",
			data: []byte{0xC0, 5, 0x90, 60, 127},
			want: []contracts.MIDI{{Status: 0xC0, Data1: 5}, {Status: 0x90, Data1: 60, Data2: 127}},
		},
		{
			name: "real-time byte inside a message",
			data: []byte{0x90, 0xF8, 60, 100},
			want: []contracts.MIDI{{Status: 0x90, Data1: 60, Data2: 100}},
		},
		{
			name: "sysex skipped",
			data: []byte{0xF0, 0x7E, 0x01, 0xF7, 0x80, 60, 0},
			want: []contracts.MIDI{{Status: 0x80, Data1: 60}},
		},
		{
			name: "truncated message dropped",
			data: []byte{0xB0, 7},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitPacket(tt.data, 0)
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("message %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
