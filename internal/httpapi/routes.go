package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/auth"
	"github.com/legop3/MultiRoombaRover-sub000/internal/fleet"
	"github.com/legop3/MultiRoombaRover-sub000/internal/ws"
)

func SetupRoutes(f *fleet.Fleet, verifier *auth.Verifier, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/roster", Roster(f))
	r.Get("/ws", ws.ClientHandler(f, verifier, logger))
	r.Get("/device", ws.DeviceHandler(f, logger))
	return r
}
