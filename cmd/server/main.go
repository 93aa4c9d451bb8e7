// @title           Imaginate Portal API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/api"
	"github.com/devmab24/imaginate-portal/internal/config"
	"github.com/devmab24/imaginate-portal/internal/database"
	"github.com/devmab24/imaginate-portal/internal/history"
	"github.com/devmab24/imaginate-portal/internal/imagegen"
	"github.com/devmab24/imaginate-portal/internal/storage"
	"github.com/devmab24/imaginate-portal/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/devmab24/imaginate-portal/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nie można wczytać konfiguracji: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("Nie można połączyć się z bazą danych: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("Nie można pingować bazy danych: %v", err)
	}
	log.Println("Pomyślnie połączono z bazą danych")

	objectStorage, err := storage.NewObjectStorage(
		cfg.Storage.Path,
		cfg.Storage.SigningSecret,
		time.Duration(cfg.Storage.URLTTLMinutes)*time.Minute,
	)
	if err != nil {
		log.Fatalf("Nie można zainicjować object storage: %v", err)
	}
	log.Printf("Obrazy będą przechowywane w: %s", cfg.Storage.Path)

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(dbpool)

	accounts, err := account.NewService(store, cfg, wsHub)
	if err != nil {
		log.Fatalf("Nie można zainicjować usługi kont: %v", err)
	}

	generator := imagegen.New(
		cfg.Images.Providers,
		cfg.Images.FallbackURL,
		time.Duration(cfg.Images.GenerationDelayMS)*time.Millisecond,
		time.Duration(cfg.Images.FetchTimeoutSec)*time.Second,
	)

	histService, err := history.NewService(store, objectStorage, generator, cfg.AppHost+"/api/assets/image")
	if err != nil {
		log.Fatalf("Nie można zainicjować usługi historii: %v", err)
	}

	server := api.NewServer(cfg, store, accounts, histService, objectStorage, wsHub)
	authLimiter := api.NewAuthRateLimiter(30, 10)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("https://localhost/swagger/doc.json"),
	))

	r.Get("/ws", server.ServeWsHandler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Imaginate API działa! Dokumentacja dostępna pod /swagger/index.html"))
	})

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/assets/image", server.ServeAssetHandler)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/signup", server.SignupHandler)
		r.Post("/login", server.LoginHandler)
		r.Post("/refresh", server.RefreshTokenHandler)
		r.Post("/logout", server.LogoutHandler)
		r.Post("/session", server.GetSessionHandler)
		r.Get("/oauth/{provider}", server.OAuthRedirectHandler)
		r.Get("/oauth/{provider}/callback", server.OAuthCallbackHandler)
	})

	r.With(server.OptionalAuthMiddleware).Post("/api/v1/generate", server.GenerateImageHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)
		r.Get("/me", server.GetCurrentUserHandler)
		r.Patch("/me/profile", server.UpdateProfileHandler)
		r.Get("/history", server.ListHistoryHandler)
		r.Delete("/history", server.ClearHistoryHandler)
	})

	log.Println("Uruchamianie serwera na porcie :8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("Nie można uruchomić serwera: %v", err)
	}
}
