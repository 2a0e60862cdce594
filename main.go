package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"keepnotes/backend/config"
	"keepnotes/backend/handlers"
	"keepnotes/backend/metrics"
	"keepnotes/backend/middleware"
	"keepnotes/backend/service"
	"keepnotes/backend/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}

	ctx := context.Background()
	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.Fatal("mongodb:", err)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			log.Println("mongodb disconnect:", err)
		}
	}()

	var media handlers.MediaStore
	if cfg.S3Bucket != "" {
		s3Store, err := service.NewS3MediaStore(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			log.Fatal("s3:", err)
		}
		media = s3Store
	} else {
		log.Println("warning: AWS_S3_BUCKET not set; image uploads will fail")
	}

	metrics.Init()

	authHandler := &handlers.AuthHandler{
		Users:       db,
		Verifier:    service.NewGoogleVerifier(cfg.GoogleClientID),
		JWTSecret:   cfg.JWTSecret,
		AdminEmails: cfg.AdminEmails,
	}
	notesHandler := &handlers.NotesHandler{
		Store:    db,
		Media:    media,
		MaxBytes: cfg.MaxUploadMB * 1024 * 1024,
	}
	adminHandler := &handlers.AdminHandler{Notes: db, Users: db}

	r := chi.NewRouter()
	r.Use(middleware.AllowAll())
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Route("/notes", func(r chi.Router) {
				r.Get("/", notesHandler.List)
				r.Post("/", notesHandler.Create)
				r.Get("/{id}", notesHandler.Get)
				r.Put("/{id}", notesHandler.Update)
				r.Delete("/{id}", notesHandler.Delete)
				r.Delete("/{id}/image", notesHandler.RemoveImage)
			})
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(db))
				r.Get("/notes", adminHandler.ListNotes)
				r.Get("/notes/{id}", adminHandler.GetNote)
				r.Patch("/notes/{id}", adminHandler.UpdateNote)
				r.Delete("/notes/{id}", adminHandler.DeleteNote)
				r.Get("/users", adminHandler.ListUsers)
				r.Patch("/users/{id}/role", adminHandler.UpdateUserRole)
				r.Delete("/users/{id}", adminHandler.DeleteUser)
			})
		})
	})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Println("server listening on :" + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("shutdown:", err)
	}
}
