package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"libris-backend/internal/domain"
	"libris-backend/internal/security"
	"libris-backend/internal/service"
)

// NewRouter assembles the versioned API surface. Unauthenticated routes
// are limited to registration, login, refresh and the health check;
// everything else sits behind the bearer-token middleware with role
// guards on the staff surfaces.
func NewRouter(
	tokens security.TokenManager,
	authSvc service.AuthService,
	userSvc service.UserService,
	bookSvc service.BookService,
	loanSvc service.LoanService,
) http.Handler {
	authHandler := NewAuthHandler(authSvc)
	userHandler := NewUserHandler(userSvc)
	bookHandler := NewBookHandler(bookSvc)
	loanHandler := NewLoanHandler(loanSvc)

	staff := RequireRole(domain.UserRoleAdmin, domain.UserRoleLibrarian)
	admin := RequireRole(domain.UserRoleAdmin)

	r := mux.NewRouter()
	r.Use(RequestID, RequestLogger)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(NewAuthenticator(tokens).Middleware)

	authed.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet)

	authed.HandleFunc("/books", bookHandler.List).Methods(http.MethodGet)
	authed.HandleFunc("/books/search", bookHandler.Search).Methods(http.MethodGet)
	authed.HandleFunc("/books/{id:[0-9]+}", bookHandler.Get).Methods(http.MethodGet)

	bookWrites := authed.NewRoute().Subrouter()
	bookWrites.Use(staff)
	bookWrites.HandleFunc("/books", bookHandler.Create).Methods(http.MethodPost)
	bookWrites.HandleFunc("/books/{id:[0-9]+}", bookHandler.Update).Methods(http.MethodPut)
	bookWrites.HandleFunc("/books/{id:[0-9]+}", bookHandler.Delete).Methods(http.MethodDelete)

	authed.HandleFunc("/users/{id:[0-9]+}", selfOrAdmin(userHandler.Get)).Methods(http.MethodGet)

	userAdmin := authed.NewRoute().Subrouter()
	userAdmin.Use(admin)
	userAdmin.HandleFunc("/users", userHandler.List).Methods(http.MethodGet)
	userAdmin.HandleFunc("/users", userHandler.Create).Methods(http.MethodPost)
	userAdmin.HandleFunc("/users/{id:[0-9]+}", userHandler.Update).Methods(http.MethodPut)
	userAdmin.HandleFunc("/users/{id:[0-9]+}", userHandler.Delete).Methods(http.MethodDelete)
	userAdmin.HandleFunc("/users/{id:[0-9]+}/active", userHandler.SetActive).Methods(http.MethodPatch)

	authed.HandleFunc("/loans", loanHandler.Borrow).Methods(http.MethodPost)
	authed.HandleFunc("/loans/my", loanHandler.MyLoans).Methods(http.MethodGet)
	authed.HandleFunc("/loans/{id:[0-9]+}", loanHandler.Get).Methods(http.MethodGet)
	authed.HandleFunc("/loans/{id:[0-9]+}/return", loanHandler.Return).Methods(http.MethodPost)
	authed.HandleFunc("/loans/{id:[0-9]+}/renew", loanHandler.Renew).Methods(http.MethodPost)

	loanStaff := authed.NewRoute().Subrouter()
	loanStaff.Use(staff)
	loanStaff.HandleFunc("/loans", loanHandler.List).Methods(http.MethodGet)
	loanStaff.HandleFunc("/loans/overdue", loanHandler.ListOverdue).Methods(http.MethodGet)
	loanStaff.HandleFunc("/loans/stats", loanHandler.Statistics).Methods(http.MethodGet)
	loanStaff.HandleFunc("/loans/{id:[0-9]+}/fine/paid", loanHandler.MarkFinePaid).Methods(http.MethodPost)

	loanAdmin := authed.NewRoute().Subrouter()
	loanAdmin.Use(admin)
	loanAdmin.HandleFunc("/loans/{id:[0-9]+}", loanHandler.Delete).Methods(http.MethodDelete)

	return r
}

// selfOrAdmin lets a user read their own record while reserving other
// records for admins.
func selfOrAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if claims.Role != domain.UserRoleAdmin && claims.UserID != id {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "insufficient permissions"})
			return
		}
		next(w, r)
	}
}
