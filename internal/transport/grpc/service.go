package grpc_server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// EnrollmentService описан вручную: сообщения - google.protobuf.Struct,
// поэтому клиентам других сервисов не нужен сгенерированный код.
const serviceName = "coursemarket.enrollment.v1.EnrollmentService"

const (
	methodIsEnrolled  = "/" + serviceName + "/IsEnrolled"
	methodGetProgress = "/" + serviceName + "/GetProgress"
)

type EnrollmentServiceServer interface {
	IsEnrolled(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetProgress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var EnrollmentServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EnrollmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IsEnrolled", Handler: isEnrolledHandler},
		{MethodName: "GetProgress", Handler: getProgressHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "enrollment.proto",
}

func RegisterEnrollmentServiceServer(s grpc.ServiceRegistrar, srv EnrollmentServiceServer) {
	s.RegisterService(&EnrollmentServiceDesc, srv)
}

func isEnrolledHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnrollmentServiceServer).IsEnrolled(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodIsEnrolled}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EnrollmentServiceServer).IsEnrolled(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getProgressHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnrollmentServiceServer).GetProgress(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetProgress}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EnrollmentServiceServer).GetProgress(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// EnrollmentClient - тонкий клиент для сервисов, которым нужен доступ к курсу.
type EnrollmentClient struct {
	cc grpc.ClientConnInterface
}

func NewEnrollmentClient(cc grpc.ClientConnInterface) *EnrollmentClient {
	return &EnrollmentClient{cc: cc}
}

func (c *EnrollmentClient) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"userId": userID, "courseId": courseID})
	if err != nil {
		return false, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodIsEnrolled, in, out); err != nil {
		return false, err
	}
	return out.GetFields()["enrolled"].GetBoolValue(), nil
}

func (c *EnrollmentClient) GetProgress(ctx context.Context, userID, courseID string) ([]string, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"userId": userID, "courseId": courseID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetProgress, in, out); err != nil {
		return nil, err
	}
	values := out.GetFields()["completedLectures"].GetListValue().GetValues()
	lectures := make([]string, 0, len(values))
	for _, v := range values {
		lectures = append(lectures, v.GetStringValue())
	}
	return lectures, nil
}
