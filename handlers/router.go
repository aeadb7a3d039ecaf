package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"photohunter/middleware"
	"photohunter/services"
)

type RouterDeps struct {
	Users          *services.UserService
	Locations      *services.LocationService
	Tokens         *services.TokenService
	AllowedOrigins []string
	HealthChecks   map[string]HealthCheck
}

func NewRouter(d RouterDeps) http.Handler {
	authHandler := NewAuthHandler(d.Users)
	userHandler := NewUserHandler(d.Users)
	locationHandler := NewLocationHandler(d.Locations, d.Users)

	r := mux.NewRouter()
	r.Use(middleware.CORSMiddleware(d.AllowedOrigins))
	r.Use(middleware.MetricsMiddleware)

	r.Handle("/healthz", NewHealthHandler(d.HealthChecks)).Methods("GET")

	// Auth routes
	userRouter := r.PathPrefix("/user").Subrouter()
	userRouter.HandleFunc("/register", authHandler.RegisterUser).Methods("POST", "OPTIONS")
	userRouter.HandleFunc("/login", authHandler.LoginUser).Methods("POST", "OPTIONS")
	userRouter.HandleFunc("/login/google", authHandler.GoogleAuthURL).Methods("GET", "OPTIONS")
	userRouter.HandleFunc("/login/google", authHandler.GoogleLogin).Methods("POST")
	userRouter.HandleFunc("/verify/send", authHandler.SendVerification).Methods("POST", "OPTIONS")
	userRouter.HandleFunc("/verify", authHandler.VerifyEmail).Methods("GET", "OPTIONS")

	// User routes
	requireAuth := middleware.RequireAuth(d.Tokens)
	userRouter.Handle("/profile", requireAuth(http.HandlerFunc(userHandler.GetProfile))).Methods("GET", "OPTIONS")
	userRouter.Handle("/favorites/{id}", requireAuth(http.HandlerFunc(userHandler.AddFavorite))).Methods("POST", "OPTIONS")
	userRouter.Handle("/favorites/{id}", requireAuth(http.HandlerFunc(userHandler.RemoveFavorite))).Methods("DELETE")

	// Location routes
	locationRouter := r.PathPrefix("/api/location").Subrouter()
	locationRouter.Use(middleware.OptionalAuth(d.Tokens))
	for _, path := range []string{"", "/"} {
		locationRouter.HandleFunc(path, locationHandler.ListLocations).Methods("GET", "OPTIONS")
		locationRouter.HandleFunc(path, locationHandler.CreateLocation).Methods("POST")
	}
	locationRouter.HandleFunc("/{id}", locationHandler.GetLocation).Methods("GET", "OPTIONS")

	return middleware.ErrorMiddleware()(r)
}
