package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/doodlesbykumbi/identity-in-go/pkg/audit"
	"github.com/doodlesbykumbi/identity-in-go/pkg/config"
	"github.com/doodlesbykumbi/identity-in-go/pkg/identity"
	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/middleware"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/store"
)

// WhoamiResponse represents the response from the /whoami endpoint
type WhoamiResponse struct {
	Account     string `json:"account"`
	Username    string `json:"username"`
	RoleID      string `json:"role_id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

func newWhoamiResponse(user model.User) WhoamiResponse {
	return WhoamiResponse{
		Account:     user.Account,
		Username:    user.Login,
		RoleID:      user.RoleID(),
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}
}

// RegisterWhoamiEndpoint registers the /whoami endpoints behind the
// identity middleware
func RegisterWhoamiEndpoint(s *server.Server) {
	whoamiRouter := s.Router.PathPrefix("/whoami").Subrouter()

	whoamiRouter.Handle("", s.Identity.Handle(handleWhoami(s.Auditor, s.Config))).Methods("GET")
	whoamiRouter.Handle("", s.Identity.Handle(handleUpdateProfile(s.Users))).Methods("PATCH")
	whoamiRouter.Handle("", s.Identity.Handle(handleLogout())).Methods("DELETE")
}

func handleWhoami(auditor audit.Sink, cfg *config.Config) middleware.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		user := identity.CurrentUser(r)

		auditor.Log(audit.WhoamiEvent{
			RoleID:   user.RoleID(),
			ClientIP: middleware.ClientIP(r, cfg.IsTrustedProxy),
			Success:  true,
		})

		respondWithJSON(w, http.StatusOK, newWhoamiResponse(user))
		return nil
	}
}

func handleUpdateProfile(users store.UsersStore) middleware.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		var profile store.Profile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid profile: "+err.Error())
			return nil
		}

		id := identity.FromRequest(r)
		current := id.Get()

		updated, err := users.UpdateProfile(r.Context(), current.RoleID(), profile)
		if errors.Is(err, store.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "user not found")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to update profile of %s: %w", current.RoleID(), err)
		}

		id.Set(*updated)
		respondWithJSON(w, http.StatusOK, newWhoamiResponse(*updated))
		return nil
	}
}

func handleLogout() middleware.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		identity.FromRequest(r).Clear()
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}
