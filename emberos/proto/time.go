package proto

import "encoding/binary"

// TimeSyncPayload encodes an EvTimeSync payload.
//
// Layout (little-endian):
//   - u64: wall clock, seconds since the Unix epoch
func TimeSyncPayload(unix int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(unix))
	return buf
}

// DecodeTimeSyncPayload decodes a TimeSyncPayload.
func DecodeTimeSyncPayload(payload []byte) (unix int64, ok bool) {
	if len(payload) < 8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(payload[0:8])), true
}

// LinkPayload encodes an EvLink payload.
//
// Layout (little-endian):
//   - u8: 1 when the link is up, 0 when down
func LinkPayload(up bool) []byte {
	if up {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeLinkPayload decodes a LinkPayload.
func DecodeLinkPayload(payload []byte) (up bool, ok bool) {
	if len(payload) < 1 {
		return false, false
	}
	return payload[0] != 0, true
}
