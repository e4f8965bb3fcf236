package reservations_service_api

import (
	"context"

	"github.com/Domenick1991/parking/internal/api/rpc"
	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"google.golang.org/grpc"
)

const ServiceName = "parking.v1.ReservationsService"

type ReservationsServiceServer interface {
	Reserve(ctx context.Context, req *rpc.ReserveRequest) (*domain.Reservation, error)
	Confirm(ctx context.Context, req *rpc.ReferenceRequest) (*domain.Reservation, error)
	Cancel(ctx context.Context, req *rpc.CancelRequest) (*domain.Reservation, error)
	Get(ctx context.Context, req *rpc.ReferenceRequest) (*domain.Reservation, error)
	ListByUser(ctx context.Context, req *rpc.UserRequest) (*rpc.ReservationList, error)
	Sweep(ctx context.Context, req *rpc.SweepRequest) (*rpc.SweepResponse, error)
}

// ServiceDesc is registered in place of generated stubs; messages travel
// through the rpc JSON codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReservationsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "Reserve", ReservationsServiceServer.Reserve),
		rpc.Unary(ServiceName, "Confirm", ReservationsServiceServer.Confirm),
		rpc.Unary(ServiceName, "Cancel", ReservationsServiceServer.Cancel),
		rpc.Unary(ServiceName, "Get", ReservationsServiceServer.Get),
		rpc.Unary(ServiceName, "ListByUser", ReservationsServiceServer.ListByUser),
		rpc.Unary(ServiceName, "Sweep", ReservationsServiceServer.Sweep),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parking/v1/reservations.proto",
}

func Register(registrar grpc.ServiceRegistrar, srv ReservationsServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// Server exposes the reservation engine over gRPC.
type Server struct {
	reservations reservation.ReservationUseCase
	clock        clock.Clock
}

func NewServer(reservations reservation.ReservationUseCase, c clock.Clock) *Server {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &Server{reservations: reservations, clock: c}
}

func (s *Server) Reserve(ctx context.Context, req *rpc.ReserveRequest) (*domain.Reservation, error) {
	return s.reservations.Reserve(ctx, reservation.ReserveInput{
		UserID:          req.UserID,
		VehicleID:       req.VehicleID,
		FacilityID:      req.FacilityID,
		SpotID:          req.SpotID,
		DurationMinutes: req.DurationMinutes,
	})
}

func (s *Server) Confirm(ctx context.Context, req *rpc.ReferenceRequest) (*domain.Reservation, error) {
	return s.reservations.Confirm(ctx, req.Reference)
}

func (s *Server) Cancel(ctx context.Context, req *rpc.CancelRequest) (*domain.Reservation, error) {
	return s.reservations.Cancel(ctx, req.Reference, req.UserID)
}

func (s *Server) Get(ctx context.Context, req *rpc.ReferenceRequest) (*domain.Reservation, error) {
	return s.reservations.Get(ctx, req.Reference)
}

func (s *Server) ListByUser(ctx context.Context, req *rpc.UserRequest) (*rpc.ReservationList, error) {
	list, err := s.reservations.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Reservation{}
	}
	return &rpc.ReservationList{Reservations: list}, nil
}

func (s *Server) Sweep(ctx context.Context, _ *rpc.SweepRequest) (*rpc.SweepResponse, error) {
	expired, err := s.reservations.Sweep(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return &rpc.SweepResponse{Expired: expired}, nil
}

var _ ReservationsServiceServer = (*Server)(nil)
