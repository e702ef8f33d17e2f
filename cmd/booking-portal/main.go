package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-reservations/internal/auth"
	"ms-reservations/internal/config"
	"ms-reservations/internal/identity"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/portal/apiclient"
	"ms-reservations/internal/portal/draftstore"
	"ms-reservations/internal/portal/flow"
)

// sessionState is what the frontend polls to know which screen to render.
type sessionState struct {
	mu          sync.Mutex
	screen      flow.Screen
	reservation *models.Reservation
}

func (s *sessionState) set(screen flow.Screen, reservation *models.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = screen
	if reservation != nil {
		s.reservation = reservation
	}
}

func (s *sessionState) snapshot() (flow.Screen, *models.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen, s.reservation
}

// portal owns one Flow per customer session.
type portal struct {
	cfg    *config.Config
	drafts *draftstore.Store
	gate   *identity.Gate
	client *http.Client
	logger *logger.Logger

	mu       sync.Mutex
	flows    map[string]*flow.Flow
	states   map[string]*sessionState
	m2mCache *auth.RedisTokenCache
}

func (p *portal) session(r *http.Request) (string, string, error) {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return "", "", err
	}
	userID, err := auth.ExtractUserIDFromJWT(token)
	if err != nil {
		return "", "", err
	}
	return userID, token, nil
}

// flowFor returns the session's flow, creating it on first use. The session
// key is the user ID: one active booking flow per customer.
func (p *portal) flowFor(userID, token string) (*flow.Flow, *sessionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.flows[userID]; ok {
		return f, p.states[userID]
	}

	state := &sessionState{screen: flow.ScreenRoomSelection}
	api := apiclient.NewClient(p.cfg.Portal.APIBaseURL, p.client, token)
	f := flow.New(api, p.drafts, p.gate, userID, userID, token, p.cfg.Portal.PollInterval, state.set)
	p.flows[userID] = f
	p.states[userID] = state
	return f, state
}

func (p *portal) dropFlow(userID string) {
	p.mu.Lock()
	f := p.flows[userID]
	delete(p.flows, userID)
	delete(p.states, userID)
	p.mu.Unlock()
	if f != nil {
		f.Teardown()
	}
}

func (p *portal) handleSelectRooms(w http.ResponseWriter, r *http.Request) {
	userID, token, err := p.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var draft models.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	f, _ := p.flowFor(userID, token)
	if err := f.SelectRooms(r.Context(), &draft); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"draft": draft})
}

func (p *portal) handleReview(w http.ResponseWriter, r *http.Request) {
	userID, token, err := p.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	f, _ := p.flowFor(userID, token)
	draft, err := f.Review(r.Context())
	if errors.Is(err, draftstore.ErrNoDraft) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"draft": draft})
}

func (p *portal) handleConfirm(w http.ResponseWriter, r *http.Request) {
	userID, token, err := p.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	f, _ := p.flowFor(userID, token)
	reservation, err := f.Confirm(r.Context())
	if errors.Is(err, draftstore.ErrNoDraft) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			http.Error(w, apiErr.Body, apiErr.StatusCode)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"reservation": reservation})
}

func (p *portal) handleResume(w http.ResponseWriter, r *http.Request) {
	userID, token, err := p.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req struct {
		ReservationID string `json:"reservationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReservationID == "" {
		http.Error(w, "reservationId is required", http.StatusBadRequest)
		return
	}

	f, _ := p.flowFor(userID, token)
	reservation, err := f.Resume(r.Context(), req.ReservationID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"reservation": reservation})
}

func (p *portal) handleSelectPayment(w http.ResponseWriter, r *http.Request) {
	userID, token, err := p.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req struct {
		PaymentType models.PaymentType `json:"paymentType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	f, _ := p.flowFor(userID, token)
	info, err := f.SelectPayment(r.Context(), req.PaymentType)
	if err != nil {
		var incomplete *flow.IdentityIncompleteError
		if errors.As(err, &incomplete) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPreconditionFailed)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   incomplete.Error(),
				"missing": incomplete.Missing,
			})
			return
		}
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			http.Error(w, apiErr.Body, apiErr.StatusCode)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"paymentInfo": info})
}

func (p *portal) handleConfirmPaid(w http.ResponseWriter, r *http.Request) {
	userID, token, err := p.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	f, _ := p.flowFor(userID, token)
	err = f.ConfirmPaid(r.Context())
	if errors.Is(err, flow.ErrNotPaidYet) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "payment confirmed"})
}

func (p *portal) handleState(w http.ResponseWriter, r *http.Request) {
	userID, token, err := p.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	_, state := p.flowFor(userID, token)
	screen, reservation := state.snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"screen":      screen,
		"reservation": reservation,
	})
}

func (p *portal) handleEndSession(w http.ResponseWriter, r *http.Request) {
	userID, _, err := p.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	p.dropFlow(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (p *portal) handleUpload(uploadFn func(ctx context.Context, userID, token string, content io.Reader, filename string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := p.session(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, "Invalid upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing file field", http.StatusBadRequest)
			return
		}
		defer file.Close()

		// Identity calls run under the portal's service account.
		m2mToken, err := p.serviceToken(r.Context())
		if err != nil {
			http.Error(w, "identity service unavailable", http.StatusBadGateway)
			return
		}

		if err := uploadFn(r.Context(), userID, m2mToken, file, header.Filename); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func (p *portal) serviceToken(ctx context.Context) (string, error) {
	cfg := auth.M2MConfig{
		IssuerURL:    os.Getenv("OIDC_ISSUER"),
		Realm:        os.Getenv("OIDC_REALM"),
		ClientID:     os.Getenv("PORTAL_CLIENT_ID"),
		ClientSecret: os.Getenv("PORTAL_CLIENT_SECRET"),
	}
	return auth.GetM2MToken(ctx, cfg, p.client, p.m2mCache, p.logger)
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Booking Portal initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	drafts := draftstore.New(redisClient, cfg.Portal.SessionTTL)
	gate := identity.NewGate(cfg.Identity.BaseURL, client, drafts,
		cfg.Identity.RequireFacePhoto, cfg.Identity.RequireCitizenID)

	p := &portal{
		cfg:      cfg,
		drafts:   drafts,
		gate:     gate,
		client:   client,
		logger:   log,
		flows:    make(map[string]*flow.Flow),
		states:   make(map[string]*sessionState),
		m2mCache: auth.NewRedisTokenCache(redisClient),
	}

	r := chi.NewRouter()
	r.Route("/portal", func(r chi.Router) {
		r.Post("/rooms", p.handleSelectRooms)
		r.Get("/review", p.handleReview)
		r.Post("/confirm", p.handleConfirm)
		r.Post("/resume", p.handleResume)
		r.Post("/payment", p.handleSelectPayment)
		r.Post("/paid", p.handleConfirmPaid)
		r.Get("/state", p.handleState)
		r.Delete("/session", p.handleEndSession)
		r.Post("/identity/photo-face", p.handleUpload(gate.UploadPhotoFace))
		r.Post("/identity/citizen-id", p.handleUpload(gate.UploadCitizenIdentification))
	})

	port := os.Getenv("PORTAL_PORT")
	if port == "" {
		port = ":8081"
	}
	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Booking Portal running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, tearing down sessions")
	p.mu.Lock()
	for _, f := range p.flows {
		f.Teardown()
	}
	p.mu.Unlock()

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Booking Portal shutdown complete")
	}
}
