package admin

import (
	"log/slog"

	"google.golang.org/grpc"

	"github.com/meetme/matchmaker/internal/moderation"
)

// Registrar ties the Moderation service into the gRPC server
type Registrar struct {
	mod *moderation.Service
	log *slog.Logger
}

// NewRegistrar creates a new Registrar for the Moderation service
func NewRegistrar(mod *moderation.Service, log *slog.Logger) *Registrar {
	return &Registrar{mod: mod, log: log}
}

// Register attaches the Moderation service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, NewService(r.mod, r.log))
}
