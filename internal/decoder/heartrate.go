package decoder

import (
	"encoding/binary"

	"github.com/stridelab/runtracker-go/internal/models"
)

// hrFormat16Bit is bit 0 of the heart rate measurement flags byte.
// When set, the BPM value is a uint16 little-endian in bytes 1-2;
// when clear it is a uint8 in byte 1.
const hrFormat16Bit = 0x01

// DecodeHeartRate extracts BPM from a GATT heart rate measurement payload
func DecodeHeartRate(payload []byte) (int, error) {
	if len(payload) < 2 {
		return 0, &DecodeError{Source: models.SourceHRM, Reason: "payload shorter than flags + value"}
	}

	if payload[0]&hrFormat16Bit != 0 {
		if len(payload) < 3 {
			return 0, &DecodeError{Source: models.SourceHRM, Reason: "16-bit format flagged but payload too short"}
		}
		return int(binary.LittleEndian.Uint16(payload[1:3])), nil
	}

	return int(payload[1]), nil
}
