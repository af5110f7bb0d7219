package main

import (
	"log"
	"net/http"
	"time"

	"quizforge/internal/api"
	"quizforge/internal/config"
	"quizforge/internal/db"
	"quizforge/internal/services"
)

func main() {
	cfg := config.Load()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	runStore := services.NewRunStore(conn)
	pdfService := services.NewPDFService()
	completionClient := services.NewCompletionClient(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.Model)

	var auth *services.GoogleAuth
	tokenStore := services.NewFileTokenStore(cfg.TokenPath)
	auth, err = services.NewGoogleAuth(cfg.ClientSecretPath, tokenStore)
	if err != nil {
		log.Printf("google credentials unavailable, form publishing disabled: %v", err)
		auth = nil
	}
	formsService := services.NewGoogleFormsService(auth)

	pipeline := services.NewPipelineService(
		pdfService,
		completionClient,
		formsService,
		runStore,
		cfg.WorkDir,
		cfg.Model,
		cfg.MinQuestions,
	)

	notifier := services.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	if notifier == nil {
		log.Printf("twilio not configured, messaging disabled")
	}

	pointer := services.NewPointerStore(cfg.PointerPath)
	fetcher := services.NewMediaFetcher()

	server := api.NewServer(
		pipeline,
		runStore,
		pointer,
		fetcher,
		notifierOrNil(notifier),
		cfg.SessionSecret,
		cfg.PipelinePassword,
		cfg.WorkDir,
	)

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("listening on %s", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
		// Pipeline runs synchronously on /api/pipeline, so writes stay open
		// for the whole LLM round trip.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

// notifierOrNil avoids handing the server a typed nil inside the interface.
func notifierOrNil(n *services.TwilioNotifier) services.Notifier {
	if n == nil {
		return nil
	}
	return n
}
