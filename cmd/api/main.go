package main

import (
	"net/http"
	"os"
	"time"

	"prescription-share/internal/adapters/auth/idp"
	"prescription-share/internal/platform/logger"
	"prescription-share/internal/ports/auth"
	"prescription-share/internal/router"
)

func main() {
	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	log := logger.NewFromEnv()

	// Sin IDP_BASE_URL el verifier queda nil y corre el modo dev
	// (identidad por headers X-Debug-*).
	var verifier auth.AuthVerifier
	if baseURL := os.Getenv("IDP_BASE_URL"); baseURL != "" {
		client, err := idp.NewClient(idp.Config{
			BaseURL: baseURL,
			APIKey:  os.Getenv("IDP_API_KEY"),
		})
		if err != nil {
			log.Error("idp client init", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		verifier = idp.NewVerifier(client)
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
