// Package streamsync synchronizes frames read from N independent live video
// sources into a continuous sequence of frame packets: groups of one frame
// per source that are mutually closest in time under a deterministic
// alignment rule.
package streamsync

import "fmt"

// FrameStatus tags the state of a FrameRecord.
type FrameStatus int

const (
	// FrameOkay marks a frame as valid; all other fields are populated.
	FrameOkay FrameStatus = iota
	// FrameDropped marks a placeholder inserted because the source had no
	// newer frame at assembly time.
	FrameDropped
	// FrameReadError marks a frame the reader failed to obtain from a
	// still-live source. Never appears in an emitted packet.
	FrameReadError
	// FrameCapBroken marks a retired source; no reader is feeding its buffer.
	FrameCapBroken
)

var frameStatusNames = map[FrameStatus]string{
	FrameOkay:      "OKAY",
	FrameDropped:   "DROPPED",
	FrameReadError: "READ_ERROR",
	FrameCapBroken: "CAP_BROKEN",
}

func (s FrameStatus) String() string {
	if name, ok := frameStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalJSON renders the status by name rather than its ordinal.
func (s FrameStatus) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// MotionVector is one decoded motion vector row: implementation defines the
// meaning of each of the 10 values, the core only moves them around.
type MotionVector [10]float64

// FrameRecord is one decoded frame plus its synchronization metadata.
// Only Status == FrameOkay guarantees the remaining fields are meaningful.
type FrameRecord struct {
	Status        FrameStatus
	Timestamp     float64 // seconds, NTP-derived wall clock
	Pixels        []byte  // width * height * 3, owned
	Width         int
	Height        int
	MotionVectors []MotionVector // owned, one row per detected vector
	FrameType     string         // typically "I", "P", "B" or "?"

	pool *framePool // buffer this record's Pixels were drawn from, if any
}

// Free releases the record's owned buffers. Safe to call on a nil receiver
// and safe to call more than once.
func (r *FrameRecord) Free() {
	if r == nil {
		return
	}
	if r.pool != nil && r.Pixels != nil {
		r.pool.release(r.Pixels)
	}
	r.Pixels = nil
	r.MotionVectors = nil
	r.pool = nil
}

// FramePacket is one record per configured source, indexed by source id.
// Its length always equals the number of sources the Synchronizer was
// constructed with.
type FramePacket []FrameRecord

// Free releases every record's owned buffers. Call this once ownership of
// a packet returned by Synchronizer.GetFramePacket is no longer needed.
// PacketDeque.Push calls it on the packet it evicts on overflow; packets
// still buffered when the Synchronizer is closed are not freed.
func (p FramePacket) Free() {
	for i := range p {
		p[i].Free()
	}
}

// DecodedFrame is the payload an external VideoCapture.Read returns on
// success. Pixels may be reused by the capability between calls (the reader
// must defensively copy it); MotionVectors is freshly allocated per call and
// its ownership transfers to the caller.
type DecodedFrame struct {
	Pixels        []byte
	Width         int
	Height        int
	FrameType     string
	MotionVectors []MotionVector
	Timestamp     float64
}

// VideoCapture is the external frame decoder / video capture driver
// contract this package consumes. Implementations are supplied by the
// caller (see internal/fakesource for a scripted test/demo implementation);
// the synchronization engine never opens real hardware or network streams
// itself.
type VideoCapture interface {
	// Open attempts the initial connection to url and reports success.
	Open(url string) bool
	// Read returns the next decoded frame, or an error on a transient read
	// failure. The payload is undefined when err != nil.
	Read() (DecodedFrame, error)
	// Release idempotently closes the capability.
	Release()
}
