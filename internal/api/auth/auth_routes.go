package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is the chi middleware signature.
type Middleware = func(http.Handler) http.Handler

// Routes builds the /auth subtree. public runs on the unauthenticated endpoints only.
func (h *HandlerImpl) Routes(authenticate, requireAdmin Middleware, public ...Middleware) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(public...)
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/verify-code", h.VerifyCode)
		r.Post("/resend-code", h.ResendCode)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.Post("/refresh", h.Refresh)
		r.Get("/check-username/{username}", h.CheckUsername)
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.UpdateProfile)
		r.Post("/change-password", h.ChangePassword)

		r.Route("/admin/users", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Put("/{id}/role", h.SetRole)
			r.Delete("/{id}", h.DeleteUser)
		})
	})

	return r
}
