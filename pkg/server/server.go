package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/identity-in-go/pkg/audit"
	"github.com/doodlesbykumbi/identity-in-go/pkg/config"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/middleware"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
	gormstore "github.com/doodlesbykumbi/identity-in-go/pkg/server/store/gorm"
)

type Server struct {
	Router   *mux.Router
	DB       *gorm.DB
	Pool     *pool.GormPool
	Config   *config.Config
	Users    store.UsersStore
	Health   store.HealthStore
	Identity *middleware.Identity
	Auditor  audit.Sink
	Logger   *slog.Logger
	srv      *http.Server
}

func NewServer(
	db *gorm.DB,
	p *pool.GormPool,
	cfg *config.Config,
	policy identity.Policy,
	auditor audit.Sink,
	host string,
	port string,
) *Server {
	logger := slog.Default()
	if auditor == nil {
		auditor = audit.Nop{}
	}
	users := gormstore.NewUsersStore(db)

	router := mux.NewRouter().UseEncodedPath()
	srv := &http.Server{
		Handler: handlers.LoggingHandler(os.Stdout, router),
		Addr:    host + ":" + port,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout:      15 * time.Second,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		Router: router,
		DB:     db,
		Pool:   p,
		Config: cfg,
		Users:  users,
		Health: gormstore.NewHealthStore(db),
		Identity: middleware.NewIdentity(policy, p, users,
			middleware.WithLogger(logger),
			middleware.WithAuditor(auditor),
			middleware.WithPolicyName(cfg.IdentityPolicy),
			middleware.WithTrustedProxies(cfg.IsTrustedProxy),
		),
		Auditor: auditor,
		Logger:  logger,
		srv:     srv,
	}
}

// Addr returns the address the server listens on
func (s *Server) Addr() string {
	return s.srv.Addr
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
