// Package wire encodes status events as the protobuf messages of proto/seat_status.proto.
package wire

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// ErrMalformed is returned for payloads that are not a valid StatusEvent.
var ErrMalformed = errors.New("malformed status event")

// SeatState is the decoded form of one seat.
type SeatState struct {
	SeatID     string
	Code       int32
	Status     string
	RawStatus  string
	Detections uint32
	Reason     string
}

// StatusEvent is the decoded form of a frame result.
type StatusEvent struct {
	SessionID       string
	FrameNumber     uint64
	Timestamp       time.Time
	Seats           []SeatState
	Occupied        uint32
	DetectionsTotal uint32
	DetectionsKept  uint32
}

// Marshal encodes r as a StatusEvent.
func Marshal(r *types.FrameResult) ([]byte, error) {
	ev := dynamicpb.NewMessage(statusEventDesc)
	setString(ev, "session_id", r.SessionID)
	if r.FrameNumber != 0 {
		set(ev, "frame_number", protoreflect.ValueOfUint64(r.FrameNumber))
	}
	if !r.Timestamp.IsZero() {
		set(ev, "timestamp_ms", protoreflect.ValueOfInt64(r.Timestamp.UnixMilli()))
	}
	if len(r.Seats) > 0 {
		seats := ev.Mutable(field(ev, "seats")).List()
		for _, s := range r.Seats {
			seats.Append(protoreflect.ValueOfMessage(seatMessage(s)))
		}
	}
	setUint32(ev, "occupied", r.Occupied)
	setUint32(ev, "detections_total", r.DetectionsTotal)
	setUint32(ev, "detections_kept", r.DetectionsKept)

	return proto.Marshal(ev)
}

func seatMessage(s types.SeatAssignmentResult) *dynamicpb.Message {
	m := dynamicpb.NewMessage(seatStateDesc)
	setString(m, "seat_id", s.SeatID)
	set(m, "code", protoreflect.ValueOfInt32(int32(s.Status.Code())))
	setString(m, "status", string(s.Status))
	setString(m, "raw_status", string(s.RawStatus))
	setUint32(m, "detections", len(s.Detections))
	setString(m, "reason", s.Reason)
	return m
}

// Unmarshal decodes a StatusEvent. Unknown fields are ignored.
func Unmarshal(b []byte) (*StatusEvent, error) {
	ev := dynamicpb.NewMessage(statusEventDesc)
	if err := proto.Unmarshal(b, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := &StatusEvent{
		SessionID:       get(ev, "session_id").String(),
		FrameNumber:     get(ev, "frame_number").Uint(),
		Occupied:        uint32(get(ev, "occupied").Uint()),
		DetectionsTotal: uint32(get(ev, "detections_total").Uint()),
		DetectionsKept:  uint32(get(ev, "detections_kept").Uint()),
	}
	if ms := get(ev, "timestamp_ms").Int(); ms != 0 {
		out.Timestamp = time.UnixMilli(ms)
	}
	seats := get(ev, "seats").List()
	for i := range seats.Len() {
		m := seats.Get(i).Message()
		out.Seats = append(out.Seats, SeatState{
			SeatID:     get(m, "seat_id").String(),
			Code:       int32(get(m, "code").Int()),
			Status:     get(m, "status").String(),
			RawStatus:  get(m, "raw_status").String(),
			Detections: uint32(get(m, "detections").Uint()),
			Reason:     get(m, "reason").String(),
		})
	}
	return out, nil
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(name)
}

func get(m protoreflect.Message, name protoreflect.Name) protoreflect.Value {
	return m.Get(field(m, name))
}

func set(m protoreflect.Message, name protoreflect.Name, v protoreflect.Value) {
	m.Set(field(m, name), v)
}

// proto3 scalars are left unset when zero.
func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	if v != "" {
		set(m, name, protoreflect.ValueOfString(v))
	}
}

func setUint32(m protoreflect.Message, name protoreflect.Name, v int) {
	if v > 0 {
		set(m, name, protoreflect.ValueOfUint32(uint32(v)))
	}
}
