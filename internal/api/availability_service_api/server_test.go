package availability_service_api

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/Domenick1991/parking/internal/api/rpc"
	"github.com/Domenick1991/parking/internal/cache"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/availability"
	"github.com/Domenick1991/parking/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func dial(t *testing.T) *grpc.ClientConn {
	t.Helper()
	svc := availability.NewService(testutil.NewMemoryStore(t), cache.NewMemoryCache(nil))

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.UnaryInterceptor(rpc.UnaryInterceptor(slog.New(slog.DiscardHandler))))
	Register(gs, NewServer(svc))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func method(name string) string {
	return "/" + ServiceName + "/" + name
}

func TestAvailabilityService(t *testing.T) {
	conn := dial(t)
	ctx := context.Background()

	a, err := rpc.Invoke[rpc.FacilityAvailability](ctx, conn, method("GetFacilityAvailability"), &rpc.FacilityRequest{FacilityID: testutil.FacilityCentral})
	require.NoError(t, err)
	assert.Equal(t, 3, a.Available)
	assert.Equal(t, 3, a.Total)
	assert.NotEmpty(t, a.AsOf)

	spots, err := rpc.Invoke[rpc.SpotList](ctx, conn, method("GetAvailableSpots"), &rpc.FacilityRequest{FacilityID: testutil.FacilityCentral, Type: domain.SpotTypeDisabled})
	require.NoError(t, err)
	require.Len(t, spots.Spots, 1)
	assert.Equal(t, testutil.SpotCentralDis, spots.Spots[0].ID)

	_, err = rpc.Invoke[rpc.SpotList](ctx, conn, method("GetAvailableSpots"), &rpc.FacilityRequest{FacilityID: testutil.FacilityCentral, Type: "TRUCK"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	st, err := rpc.Invoke[rpc.SpotStatus](ctx, conn, method("GetSpotStatus"), &rpc.SpotRequest{SpotID: testutil.SpotAirport})
	require.NoError(t, err)
	assert.Equal(t, domain.SpotStatusAvailable, st.Status)

	_, err = rpc.Invoke[rpc.SpotStatus](ctx, conn, method("GetSpotStatus"), &rpc.SpotRequest{SpotID: 999})
	assert.ErrorIs(t, err, domain.ErrSpotNotFound)

	warmed, err := rpc.Invoke[rpc.WarmResponse](ctx, conn, method("WarmCache"), &rpc.WarmRequest{FacilityIDs: []int64{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, warmed.Warmed)
}
