package grpc

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"bookingdesk/backend/internal/service/appointments"
)

// CodeFor maps an engine result onto a gRPC status code.
func CodeFor(res appointments.Result) codes.Code {
	if res.OK() {
		return codes.OK
	}
	switch appointments.KindOf(res) {
	case appointments.KindValidation:
		return codes.InvalidArgument
	case appointments.KindNotFound:
		return codes.NotFound
	case appointments.KindUnauthorized:
		return codes.PermissionDenied
	case appointments.KindConflict, appointments.KindState, appointments.KindOTP:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// errorWithEnvelope returns a status error whose details carry the result
// envelope, so clients see the same body on success and failure.
func errorWithEnvelope(code codes.Code, res appointments.Result) error {
	st := status.New(code, res.Message)
	if body, err := toStruct(res); err == nil {
		if withDetails, err := st.WithDetails(body); err == nil {
			st = withDetails
		}
	}
	return st.Err()
}

// EnvelopeFromError pulls the result envelope back out of a status error.
func EnvelopeFromError(err error) (*structpb.Struct, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			return s, true
		}
	}
	return nil, false
}

func stringField(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	}
	return ""
}

// intField reads an optional integer. Absent and null fields return nil.
func intField(req *structpb.Struct, name string) (*int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			return nil, fmt.Errorf("%s must be an integer", name)
		}
		n := int(f)
		return &n, nil
	case *structpb.Value_StringValue:
		s := strings.TrimSpace(k.StringValue)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", name)
		}
		return &n, nil
	}
	return nil, fmt.Errorf("%s must be an integer", name)
}
