package gimbal

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SIYI command IDs used by this client.
const (
	cmdCenter     = 0x08
	cmdJog        = 0x07
	cmdConfig     = 0x0A
	cmdAttitude   = 0x0D
	cmdStreamFreq = 0x25
)

// Frame layout: 0x55 0x66, ctrl byte, payload length (LE16), sequence (LE16),
// command ID, payload, CRC16 (LE16) over everything before it.
var frameHeader = []byte{0x55, 0x66}

const frameMinLen = 10

var errBadFrame = errors.New("malformed frame")

func buildFrame(seq uint16, cmd byte, payload []byte) []byte {
	f := make([]byte, 0, frameMinLen+len(payload))
	f = append(f, frameHeader...)
	f = append(f, 0x00)
	f = binary.LittleEndian.AppendUint16(f, uint16(len(payload)))
	f = binary.LittleEndian.AppendUint16(f, seq)
	f = append(f, cmd)
	f = append(f, payload...)
	return binary.LittleEndian.AppendUint16(f, crc16(f))
}

func parseFrame(raw []byte) (cmd byte, payload []byte, err error) {
	if len(raw) < frameMinLen || raw[0] != frameHeader[0] || raw[1] != frameHeader[1] {
		return 0, nil, errBadFrame
	}
	dlen := int(binary.LittleEndian.Uint16(raw[3:5]))
	if len(raw) < frameMinLen+dlen {
		return 0, nil, fmt.Errorf("%w: truncated payload", errBadFrame)
	}
	body := raw[:8+dlen]
	want := binary.LittleEndian.Uint16(raw[8+dlen : 10+dlen])
	if crc16(body) != want {
		return 0, nil, fmt.Errorf("%w: crc mismatch", errBadFrame)
	}
	return raw[7], body[8:], nil
}

// crc16 is CRC-16/CCITT with zero init (XMODEM), the checksum the SIYI
// protocol uses.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
