package availability_service_api

import (
	"context"
	"time"

	"github.com/Domenick1991/parking/internal/api/rpc"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/availability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "parking.v1.AvailabilityService"

type AvailabilityServiceServer interface {
	GetFacilityAvailability(ctx context.Context, req *rpc.FacilityRequest) (*rpc.FacilityAvailability, error)
	GetAvailableSpots(ctx context.Context, req *rpc.FacilityRequest) (*rpc.SpotList, error)
	GetSpotStatus(ctx context.Context, req *rpc.SpotRequest) (*rpc.SpotStatus, error)
	WarmCache(ctx context.Context, req *rpc.WarmRequest) (*rpc.WarmResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "GetFacilityAvailability", AvailabilityServiceServer.GetFacilityAvailability),
		rpc.Unary(ServiceName, "GetAvailableSpots", AvailabilityServiceServer.GetAvailableSpots),
		rpc.Unary(ServiceName, "GetSpotStatus", AvailabilityServiceServer.GetSpotStatus),
		rpc.Unary(ServiceName, "WarmCache", AvailabilityServiceServer.WarmCache),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parking/v1/availability.proto",
}

func Register(registrar grpc.ServiceRegistrar, srv AvailabilityServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// Server exposes availability reads over gRPC.
type Server struct {
	availability availability.AvailabilityUseCase
}

func NewServer(availability availability.AvailabilityUseCase) *Server {
	return &Server{availability: availability}
}

func (s *Server) GetFacilityAvailability(ctx context.Context, req *rpc.FacilityRequest) (*rpc.FacilityAvailability, error) {
	a, err := s.availability.GetFacilityAvailability(ctx, req.FacilityID)
	if err != nil {
		return nil, err
	}
	return &rpc.FacilityAvailability{
		FacilityID:    a.FacilityID,
		Available:     a.Available,
		Total:         a.Total,
		OccupancyRate: a.OccupancyRate,
		AsOf:          a.AsOf.Format(time.RFC3339),
	}, nil
}

func (s *Server) GetAvailableSpots(ctx context.Context, req *rpc.FacilityRequest) (*rpc.SpotList, error) {
	if req.Type != "" && !req.Type.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown spot type %q", req.Type)
	}
	spots, err := s.availability.GetAvailableSpotsByType(ctx, req.FacilityID, req.Type)
	if err != nil {
		return nil, err
	}
	if spots == nil {
		spots = []domain.Spot{}
	}
	return &rpc.SpotList{Spots: spots}, nil
}

func (s *Server) GetSpotStatus(ctx context.Context, req *rpc.SpotRequest) (*rpc.SpotStatus, error) {
	st, err := s.availability.GetSpotStatus(ctx, req.SpotID)
	if err != nil {
		return nil, err
	}
	return &rpc.SpotStatus{SpotID: req.SpotID, Status: st}, nil
}

func (s *Server) WarmCache(ctx context.Context, req *rpc.WarmRequest) (*rpc.WarmResponse, error) {
	warmed, err := s.availability.WarmCache(ctx, req.FacilityIDs)
	if err != nil {
		return nil, err
	}
	return &rpc.WarmResponse{Warmed: warmed}, nil
}

var _ AvailabilityServiceServer = (*Server)(nil)
