package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/seatsense/seat-monitor/pkg/types"
)

func mustMarshal(t *testing.T, r *types.FrameResult) []byte {
	t.Helper()
	b, err := Marshal(r)
	require.NoError(t, err)
	return b
}

func TestMarshalDecodesBack(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 123_000_000, time.UTC)
	r := &types.FrameResult{
		SessionID:   "abc",
		FrameNumber: 42,
		Timestamp:   ts,
		Seats: []types.SeatAssignmentResult{
			{SeatID: "t1", Status: types.StatusOccupied, RawStatus: types.StatusEmpty, Reason: types.ReasonPerson,
				Detections: []types.Detection{{ClassName: "person"}, {ClassName: "laptop"}}},
			{SeatID: "t2", Status: types.StatusEmpty, RawStatus: types.StatusEmpty, Reason: types.ReasonNothing},
		},
		Occupied:        1,
		DetectionsTotal: 5,
		DetectionsKept:  2,
	}

	ev, err := Unmarshal(mustMarshal(t, r))
	require.NoError(t, err)

	assert.Equal(t, "abc", ev.SessionID)
	assert.Equal(t, uint64(42), ev.FrameNumber)
	assert.True(t, ts.Equal(ev.Timestamp))
	assert.Equal(t, uint32(1), ev.Occupied)
	assert.Equal(t, uint32(5), ev.DetectionsTotal)
	assert.Equal(t, uint32(2), ev.DetectionsKept)
	require.Len(t, ev.Seats, 2)
	assert.Equal(t, SeatState{SeatID: "t1", Code: 1, Status: "OCCUPIED", RawStatus: "EMPTY", Detections: 2, Reason: types.ReasonPerson}, ev.Seats[0])
	assert.Equal(t, int32(3), ev.Seats[1].Code)
}

// Field numbers must match proto/seat_status.proto for clients using generated code.
func TestWireLayoutMatchesSchema(t *testing.T) {
	b := mustMarshal(t, &types.FrameResult{
		SessionID:   "s",
		FrameNumber: 7,
		Seats:       []types.SeatAssignmentResult{{SeatID: "t1", Status: types.StatusOnHold}},
	})

	seen := map[protowire.Number]protowire.Type{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.Positive(t, n)
		b = b[n:]
		n = protowire.ConsumeFieldValue(num, typ, b)
		require.Positive(t, n)
		b = b[n:]
		seen[num] = typ
	}
	assert.Equal(t, map[protowire.Number]protowire.Type{
		1: protowire.BytesType,  // session_id
		2: protowire.VarintType, // frame_number
		4: protowire.BytesType,  // seats
	}, seen)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 99, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, 3)

	ev, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ev.FrameNumber)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	b := mustMarshal(t, &types.FrameResult{SessionID: "session"})
	_, err := Unmarshal(b[:len(b)-2])
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEmptyResultEncodesEmpty(t *testing.T) {
	assert.Empty(t, mustMarshal(t, &types.FrameResult{}))
}
