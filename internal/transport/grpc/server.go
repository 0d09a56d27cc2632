package grpc_server

import (
	"context"
	"errors"
	"time"

	"github.com/waste3d/coursemarket-api/internal/application/usecase"
	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/obs"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type EnrollmentServer struct {
	catalog  *usecase.CatalogUseCase
	progress *usecase.ProgressUseCase
}

func NewEnrollmentServer(catalog *usecase.CatalogUseCase, progress *usecase.ProgressUseCase) *EnrollmentServer {
	return &EnrollmentServer{catalog: catalog, progress: progress}
}

// NewServer собирает grpc.Server с EnrollmentService и стандартным health.
func NewServer(srv *EnrollmentServer) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(unaryLogging))
	RegisterEnrollmentServiceServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

func ids(req *structpb.Struct) (userID, courseID string, err error) {
	f := req.GetFields()
	userID = f["userId"].GetStringValue()
	courseID = f["courseId"].GetStringValue()
	if userID == "" {
		return "", "", status.Error(codes.InvalidArgument, "userId is required")
	}
	if courseID == "" {
		return "", "", status.Error(codes.InvalidArgument, "courseId is required")
	}
	return userID, courseID, nil
}

func (s *EnrollmentServer) IsEnrolled(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, courseID, err := ids(req)
	if err != nil {
		return nil, err
	}
	ok, err := s.catalog.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"enrolled": ok})
}

func (s *EnrollmentServer) GetProgress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, courseID, err := ids(req)
	if err != nil {
		return nil, err
	}
	p, err := s.progress.GetProgress(ctx, userID, courseID)
	if err != nil {
		return nil, toStatus(err)
	}
	lectures := make([]interface{}, 0, len(p.CompletedLectures))
	for _, l := range p.CompletedLectures {
		lectures = append(lectures, l)
	}
	return structpb.NewStruct(map[string]interface{}{
		"userId":            p.UserID,
		"courseId":          p.CourseID,
		"completedLectures": lectures,
	})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	}
	obs.Logger.Error("grpc request failed", "err", err)
	return status.Error(codes.Internal, "internal error")
}

func unaryLogging(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	obs.Logger.Info("grpc_request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return resp, err
}
