package mididarwin

import "github.com/leandrodaf/zynmixer/sdk/contracts"

// channelMessageLength returns the size of a channel voice message for a
// status byte, or 0 for system messages.
func channelMessageLength(status byte) int {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
		return 3
	case 0xC0, 0xD0:
		return 2
	}
	return 0
}

// splitPacket extracts the channel voice messages of a CoreMIDI packet.
// Running status is honoured; system exclusive and real-time bytes are skipped.
func splitPacket(raw []byte, timestamp uint64) []contracts.MIDI {
	data := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b < 0xF8 {
			data = append(data, b)
		}
	}

	var (
		out     []contracts.MIDI
		running byte
		inSysEx bool
	)
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b == 0xF0:
			inSysEx = true
			running = 0
			i++
			continue
		case b == 0xF7:
			inSysEx = false
			i++
			continue
		case inSysEx:
			i++
			continue
		case b >= 0xF0:
			running = 0
			i++
			continue
		}

		status := running
		if b&0x80 != 0 {
			status = b
			running = b
			i++
		}
		size := channelMessageLength(status)
		if size == 0 {
			i++
			continue
		}
		if i+size-1 > len(data) {
			break
		}
		ev := contracts.MIDI{Timestamp: timestamp, Status: status, Data1: data[i]}
		if size == 3 {
			ev.Data2 = data[i+1]
		}
		out = append(out, ev)
		i += size - 1
	}
	return out
}
