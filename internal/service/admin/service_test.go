package admin_test

import (
	"context"
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/gorm"

	"github.com/meetme/matchmaker/internal/db"
	"github.com/meetme/matchmaker/internal/db/dbtest"
	"github.com/meetme/matchmaker/internal/moderation"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/pairing"
	"github.com/meetme/matchmaker/internal/registration"
	"github.com/meetme/matchmaker/internal/repository"
	"github.com/meetme/matchmaker/internal/selector"
	"github.com/meetme/matchmaker/internal/service/admin"
)

// dial serves the Moderation service over an in-memory listener.
func dial(t *testing.T) (*grpc.ClientConn, *gorm.DB) {
	t.Helper()
	database := dbtest.Open(t)
	pendingUser := dbtest.Profile(20, db.GenderMale, 22)
	pendingUser.Approval = db.ApprovalPending
	pendingUser.Pairing = db.PairingInactive
	dbtest.Seed(t, database, pendingUser)

	sel := selector.New(database, selector.DefaultAgeDiff, rand.New(rand.NewSource(1)))
	engine := pairing.New(repository.NewStore(database), sel, registration.DefaultLimits(), pairing.Options{}, nil)
	mod := moderation.New(engine, nil, notify.Nop{}, moderation.NewAllowList([]int64{1}), nil)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	admin.NewRegistrar(mod, nil).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, database
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	conn, database := dial(t)

	out, err := admin.Invoke(ctx, conn, "Approve", request(t, map[string]any{"admin_id": 1, "user_id": "20"}))
	require.NoError(t, err)
	assert.Equal(t, "approved", out.Fields["outcome"].GetStringValue())
	profile := out.Fields["profile"].GetStructValue()
	assert.Equal(t, "searching", profile.Fields["pairing"].GetStringValue())

	assert.Equal(t, db.ApprovalApproved, dbtest.Reload(t, database, 20).Approval)
}

func TestErrorsMapToCodes(t *testing.T) {
	ctx := context.Background()
	conn, _ := dial(t)

	tests := []struct {
		name   string
		method string
		fields map[string]any
		code   codes.Code
	}{
		{"non admin", "Approve", map[string]any{"admin_id": 20, "user_id": 20}, codes.PermissionDenied},
		{"missing user", "Ban", map[string]any{"admin_id": 1}, codes.InvalidArgument},
		{"fractional id", "Ban", map[string]any{"admin_id": 1, "user_id": 2.5}, codes.InvalidArgument},
		{"unknown user", "Unban", map[string]any{"admin_id": 1, "user_id": 404}, codes.NotFound},
		{"not banned", "Unban", map[string]any{"admin_id": 1, "user_id": 20}, codes.FailedPrecondition},
		{"unknown request", "DenyUnpair", map[string]any{"admin_id": 1, "request_id": 9}, codes.NotFound},
		{"empty broadcast", "Broadcast", map[string]any{"admin_id": 1, "text": " "}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := admin.Invoke(ctx, conn, tt.method, request(t, tt.fields))
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestStatsAndBroadcast(t *testing.T) {
	ctx := context.Background()
	conn, _ := dial(t)

	out, err := admin.Invoke(ctx, conn, "Stats", request(t, map[string]any{"admin_id": 1}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.Fields["total_users"].GetNumberValue())
	assert.Equal(t, float64(1), out.Fields["approval"].GetStructValue().Fields["pending"].GetNumberValue())

	out, err = admin.Invoke(ctx, conn, "Broadcast", request(t, map[string]any{"admin_id": 1, "text": "hello"}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.Fields["delivered"].GetNumberValue())
	assert.Equal(t, float64(1), out.Fields["total"].GetNumberValue())
}
