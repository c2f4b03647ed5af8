package admin

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/moderation"
	"github.com/meetme/matchmaker/internal/pairing"
)

// Service implements the Moderation gRPC API on top of moderation.Service.
type Service struct {
	mod *moderation.Service
	log *slog.Logger
}

// NewService creates the gRPC facade.
func NewService(mod *moderation.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{mod: mod, log: log.With("module", "admin_grpc")}
}

var _ ModerationServer = (*Service)(nil)

// Approve admits a profile.
//
// Example:
//
//	{"admin_id": 1, "user_id": 20}
func (s *Service) Approve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.onUser(ctx, req, "Approve", s.mod.Approve)
}

func (s *Service) Reject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.onUser(ctx, req, "Reject", s.mod.Reject)
}

// Ban bans a user; "reason" is optional.
func (s *Service) Ban(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	reason := stringField(req, "reason")
	return s.onUser(ctx, req, "Ban", func(ctx context.Context, adminID, userID int64) (*pairing.Result, error) {
		return s.mod.Ban(ctx, adminID, userID, reason)
	})
}

func (s *Service) Unban(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.onUser(ctx, req, "Unban", s.mod.Unban)
}

func (s *Service) ForceUnpair(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.onUser(ctx, req, "ForceUnpair", s.mod.ForceUnpair)
}

// ApproveUnpair grants a request.
//
// Example:
//
//	{"admin_id": 1, "request_id": 7, "comment": "ok"}
func (s *Service) ApproveUnpair(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.onRequest(ctx, req, "ApproveUnpair", s.mod.ApproveUnpair)
}

func (s *Service) DenyUnpair(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.onRequest(ctx, req, "DenyUnpair", s.mod.DenyUnpair)
}

// Stats returns the dashboard snapshot.
func (s *Service) Stats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := intField(req, "admin_id")
	if err != nil {
		return nil, err
	}
	stats, err := s.mod.Stats(ctx, adminID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return structpb.NewStruct(map[string]any{
		"total_users":       stats.TotalUsers,
		"banned":            stats.Banned,
		"approval":          countMap(stats.Approval),
		"pairing":           countMap(stats.Pairing),
		"confirmed_matches": stats.ConfirmedMatches,
		"pair_history":      stats.PairHistory,
		"pending_unpairs":   stats.PendingUnpairs,
		"total_likes":       stats.TotalLikes,
		"total_skips":       stats.TotalSkips,
	})
}

// Broadcast sends "text" to every reachable user.
func (s *Service) Broadcast(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	adminID, err := intField(req, "admin_id")
	if err != nil {
		return nil, err
	}
	delivered, total, err := s.mod.Broadcast(ctx, adminID, stringField(req, "text"))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return structpb.NewStruct(map[string]any{"delivered": delivered, "total": total})
}

func (s *Service) onUser(
	ctx context.Context,
	req *structpb.Struct,
	method string,
	fn func(ctx context.Context, adminID, userID int64) (*pairing.Result, error),
) (*structpb.Struct, error) {
	adminID, err := intField(req, "admin_id")
	if err != nil {
		return nil, err
	}
	userID, err := intField(req, "user_id")
	if err != nil {
		return nil, err
	}

	s.log.Debug(method+" called", "admin_id", adminID, "user_id", userID)
	res, err := fn(ctx, adminID, userID)
	if err != nil {
		s.log.Debug(method+" failed", "err", err)
		return nil, svcErr.Map(err)
	}
	return resultStruct(res)
}

func (s *Service) onRequest(
	ctx context.Context,
	req *structpb.Struct,
	method string,
	fn func(ctx context.Context, adminID int64, requestID uint64, comment string) (*pairing.Result, error),
) (*structpb.Struct, error) {
	adminID, err := intField(req, "admin_id")
	if err != nil {
		return nil, err
	}
	requestID, err := intField(req, "request_id")
	if err != nil {
		return nil, err
	}

	s.log.Debug(method+" called", "admin_id", adminID, "request_id", requestID)
	res, err := fn(ctx, adminID, uint64(requestID), stringField(req, "comment"))
	if err != nil {
		s.log.Debug(method+" failed", "err", err)
		return nil, svcErr.Map(err)
	}
	return resultStruct(res)
}

// intField reads a positive id given as a JSON number or numeric string.
func intField(req *structpb.Struct, key string) (int64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, svcErr.InvalidArgument(key + " is required")
	}

	var id int64
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if k.NumberValue != math.Trunc(k.NumberValue) {
			return 0, svcErr.InvalidArgument(key + " must be an integer")
		}
		id = int64(k.NumberValue)
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return 0, svcErr.InvalidArgument(key + " must be an integer")
		}
		id = n
	default:
		return 0, svcErr.InvalidArgument(key + " must be an integer")
	}
	if id <= 0 {
		return 0, svcErr.InvalidArgument(key + " must be positive")
	}
	return id, nil
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func countMap(m map[string]int64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func resultStruct(res *pairing.Result) (*structpb.Struct, error) {
	out := map[string]any{"outcome": string(res.Outcome)}
	if res.Profile != nil {
		out["profile"] = profileMap(res.Profile)
	}
	if res.Counterpart != nil {
		out["counterpart_id"] = res.Counterpart.UserID
	}
	if res.Request != nil {
		out["request_id"] = int64(res.Request.ID)
		out["request_status"] = string(res.Request.Status)
	}
	return structpb.NewStruct(out)
}

func profileMap(p *db.Profile) map[string]any {
	m := map[string]any{
		"user_id":  p.UserID,
		"approval": string(p.Approval),
		"pairing":  string(p.Pairing),
		"banned":   p.Banned,
	}
	if p.PartnerID != nil {
		m["partner_id"] = *p.PartnerID
	}
	return m
}
