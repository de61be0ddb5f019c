package types

import "time"

// Box is an axis-aligned rectangle in image-pixel coordinates.
type Box struct {
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
	X2 float64 `json:"x2" yaml:"x2"`
	Y2 float64 `json:"y2" yaml:"y2"`
}

// Width returns the horizontal extent (may be zero or negative for degenerate boxes).
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent (may be zero or negative for degenerate boxes).
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// SeatZone is the fixed region of the camera frame associated with one seat.
type SeatZone struct {
	ID  string `json:"id"` // canonical lowercase
	Box Box    `json:"box"`
}

// Detection is one object instance reported by the external detector for a single frame.
type Detection struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       Box     `json:"bbox"`
}

// SeatStatus is the occupancy state of a seat.
type SeatStatus string

const (
	StatusOccupied SeatStatus = "OCCUPIED"
	StatusOnHold   SeatStatus = "ON-HOLD"
	StatusEmpty    SeatStatus = "EMPTY"
)

// Reason strings attached to each derived status.
const (
	ReasonPerson  = "Person detected"
	ReasonObjects = "Objects detected, no person"
	ReasonNothing = "No objects detected"
)

// Code returns the numeric status code used by the dashboard (1=occupied, 2=on-hold, 3=empty).
// Anything unrecognised reports as empty.
func (s SeatStatus) Code() int {
	switch s {
	case StatusOccupied:
		return 1
	case StatusOnHold:
		return 2
	default:
		return 3
	}
}

// Valid reports whether s is one of the three known statuses.
func (s SeatStatus) Valid() bool {
	return s == StatusOccupied || s == StatusOnHold || s == StatusEmpty
}

// SeatAssignmentResult is the per-seat output of one frame.
type SeatAssignmentResult struct {
	SeatID     string      `json:"seat_id"`
	Status     SeatStatus  `json:"status"`
	RawStatus  SeatStatus  `json:"raw_status"`
	Detections []Detection `json:"detected_objects"`
	Reason     string      `json:"reason"`
}

// Frame is one frame worth of detections as delivered by the detector.
type Frame struct {
	FrameNumber uint64      `json:"frame_number"`
	Timestamp   time.Time   `json:"timestamp"`
	Detections  []Detection `json:"detections"`
}

// FrameResult is everything the delivery layer needs about one processed frame.
type FrameResult struct {
	SessionID       string                 `json:"session_id"`
	FrameNumber     uint64                 `json:"frame_number"`
	Timestamp       time.Time              `json:"timestamp"`
	Seats           []SeatAssignmentResult `json:"seats"`
	StatusCodes     map[string]int         `json:"status_codes"`
	DetectionsTotal int                    `json:"detections_total"`
	DetectionsKept  int                    `json:"detections_kept"`
	Occupied        int                    `json:"occupied"`
}

// Seat returns the result for the given seat id, if present.
func (r *FrameResult) Seat(id string) (SeatAssignmentResult, bool) {
	for _, s := range r.Seats {
		if s.SeatID == id {
			return s, true
		}
	}
	return SeatAssignmentResult{}, false
}
