package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router builds the auth module routes.
//
// Example:
//
//	h := auth.NewHandler(svc, cookies, cfg)
//
//	r := chi.NewRouter()
//	r.Mount("/api/auth", auth.Router(h))
func Router(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/signin", h.SignIn)
	r.Get("/callback/{provider}", h.Callback)
	r.Post("/link-accounts", h.LinkAccounts)
	r.Get("/me", h.Me)
	r.Post("/signout", h.SignOut)
	// Plain browser navigation also signs out.
	r.Get("/signout", h.SignOut)

	return r
}

func providerParam(r *http.Request) string {
	return chi.URLParam(r, "provider")
}
