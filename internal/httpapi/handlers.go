package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/legop3/MultiRoombaRover-sub000/internal/fleet"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Roster returns the public rover roster plus the current access mode.
func Roster(f *fleet.Fleet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := f.View()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Mode   string              `json:"mode"`
			Roster []types.RosterEntry `json:"roster"`
		}{
			Mode:   string(v.Mode),
			Roster: v.Roster,
		})
	}
}
