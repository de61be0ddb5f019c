package wire

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Descriptors of proto/seat_status.proto, built at init so the messages can be marshalled with
// dynamicpb. Keep both in sync.
var (
	statusEventDesc protoreflect.MessageDescriptor
	seatStateDesc   protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(schemaFile(), new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("wire: invalid seat_status schema: %v", err))
	}
	seatStateDesc = fd.Messages().ByName("SeatState")
	statusEventDesc = fd.Messages().ByName("StatusEvent")
}

func schemaFile() *descriptorpb.FileDescriptorProto {
	newField := func(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(num),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:   typ.Enum(),
		}
	}
	const (
		str = descriptorpb.FieldDescriptorProto_TYPE_STRING
		i32 = descriptorpb.FieldDescriptorProto_TYPE_INT32
		i64 = descriptorpb.FieldDescriptorProto_TYPE_INT64
		u32 = descriptorpb.FieldDescriptorProto_TYPE_UINT32
		u64 = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	)

	seats := newField("seats", 4, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	seats.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	seats.TypeName = proto.String(".seatmonitor.SeatState")

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("seat_status.proto"),
		Package: proto.String("seatmonitor"),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/seatsense/seat-monitor/internal/wire"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SeatState"),
				Field: []*descriptorpb.FieldDescriptorProto{
					newField("seat_id", 1, str),
					newField("code", 2, i32),
					newField("status", 3, str),
					newField("raw_status", 4, str),
					newField("detections", 5, u32),
					newField("reason", 6, str),
				},
			},
			{
				Name: proto.String("StatusEvent"),
				Field: []*descriptorpb.FieldDescriptorProto{
					newField("session_id", 1, str),
					newField("frame_number", 2, u64),
					newField("timestamp_ms", 3, i64),
					seats,
					newField("occupied", 5, u32),
					newField("detections_total", 6, u32),
					newField("detections_kept", 7, u32),
				},
			},
		},
	}
}
