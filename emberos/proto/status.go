package proto

import "encoding/binary"

// statusMagic guards against foreign payloads on the status topic.
const statusMagic = 0xEB

// statusVersion is bumped when the frame layout changes.
const statusVersion = 1

// StatusFrame is the compact telemetry report published by a running
// system. It is small on purpose: the subscriber side may be another
// constrained device.
type StatusFrame struct {
	UptimeSeconds uint32
	TaskCount     uint8
	TimeSynced    bool
	LinkUp        bool
	EventDrops    uint32
}

// StatusFrameLen is the encoded size of a StatusFrame.
const StatusFrameLen = 12

// EncodeStatusFrame appends the encoded frame to dst.
//
// Layout (little-endian):
//   - u8:  magic 0xEB
//   - u8:  version
//   - u32: uptime seconds
//   - u8:  running task count
//   - u8:  flags (bit0 time synced, bit1 link up)
//   - u32: dropped event count
func EncodeStatusFrame(dst []byte, f StatusFrame) []byte {
	var buf [StatusFrameLen]byte
	buf[0] = statusMagic
	buf[1] = statusVersion
	binary.LittleEndian.PutUint32(buf[2:6], f.UptimeSeconds)
	buf[6] = f.TaskCount
	var flags uint8
	if f.TimeSynced {
		flags |= 1 << 0
	}
	if f.LinkUp {
		flags |= 1 << 1
	}
	buf[7] = flags
	binary.LittleEndian.PutUint32(buf[8:12], f.EventDrops)
	return append(dst, buf[:]...)
}

// DecodeStatusFrame decodes an EncodeStatusFrame payload.
func DecodeStatusFrame(payload []byte) (StatusFrame, bool) {
	if len(payload) < StatusFrameLen {
		return StatusFrame{}, false
	}
	if payload[0] != statusMagic || payload[1] != statusVersion {
		return StatusFrame{}, false
	}
	var f StatusFrame
	f.UptimeSeconds = binary.LittleEndian.Uint32(payload[2:6])
	f.TaskCount = payload[6]
	f.TimeSynced = payload[7]&(1<<0) != 0
	f.LinkUp = payload[7]&(1<<1) != 0
	f.EventDrops = binary.LittleEndian.Uint32(payload[8:12])
	return f, true
}
