package endpoints

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/doodlesbykumbi/identity-in-go/pkg/server"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
)

// StatusResponse is the body of GET /status
type StatusResponse struct {
	Status   string      `json:"status"`
	Database string      `json:"database"`
	Policy   string      `json:"policy"`
	Pool     *PoolStatus `json:"pool,omitempty"`
}

// PoolStatus summarises the connection pool
type PoolStatus struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

// RegisterStatusEndpoints registers GET /status. It is not behind the
// identity middleware.
func RegisterStatusEndpoints(s *server.Server) {
	var stats func() sql.DBStats
	if s.Pool != nil {
		stats = s.Pool.Stats
	}
	s.Router.HandleFunc("/status", handleStatus(s.Health, stats, s.Config.IdentityPolicy)).Methods("GET")
}

func handleStatus(health store.HealthStore, stats func() sql.DBStats, policy string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := StatusResponse{Status: "ok", Database: "ok", Policy: policy}
		code := http.StatusOK
		if err := health.CheckConnectivity(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Database = err.Error()
			code = http.StatusServiceUnavailable
		}

		if stats != nil {
			st := stats()
			resp.Pool = &PoolStatus{
				MaxOpen:      st.MaxOpenConnections,
				Open:         st.OpenConnections,
				InUse:        st.InUse,
				Idle:         st.Idle,
				WaitCount:    st.WaitCount,
				WaitDuration: st.WaitDuration.String(),
			}
		}

		respondWithJSON(w, code, resp)
	}
}
