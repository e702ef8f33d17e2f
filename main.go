package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-reservations/internal/auth"
	"ms-reservations/internal/config"
	"ms-reservations/internal/kafka"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/payment"
	"ms-reservations/internal/payment/gateway"
	"ms-reservations/internal/payment/qr"
	"ms-reservations/internal/reservation"
	"ms-reservations/internal/reservation/api"
	reservationdb "ms-reservations/internal/reservation/db"
	reservationkafka "ms-reservations/internal/reservation/kafka"
	rediswrap "ms-reservations/internal/reservation/redis"
	"ms-reservations/internal/sse"
)

// subscribeHoldExpiry watches Redis keyspace notifications for expired room
// holds. A hold that expires while its reservation is still pending means
// staff never acted in time: the reservation is cancelled with a reason and
// the remaining holds are released.
func subscribeHoldExpiry(rdb *redis.Client, svc *reservation.ReservationService, log *logger.Logger) {
	ctx := context.Background()

	val, err := rdb.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to get keyspace config: %v", err))
	} else {
		log.Info("REDIS", fmt.Sprintf("Current keyspace notifications setting: %v", val))
		if len(val) < 2 || !strings.Contains(val[1].(string), "x") || !strings.Contains(val[1].(string), "E") {
			log.Warn("REDIS", "Keyspace notifications not properly configured for expiry events!")
		}
	}

	pubsub := rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	log.Info("REDIS", fmt.Sprintf("Subscribed to Redis keyevent expired notifications (DB %d)", rdb.Options().DB))

	go func() {
		for msg := range pubsub.Channel() {
			if !strings.HasPrefix(msg.Payload, rediswrap.HoldKeyPrefix) {
				continue
			}
			// room_hold:<hotelID>:<roomTypeID>
			parts := strings.SplitN(strings.TrimPrefix(msg.Payload, rediswrap.HoldKeyPrefix), ":", 2)
			if len(parts) != 2 {
				log.Warn("HOLD_EXPIRY", fmt.Sprintf("Unexpected hold key shape: %s", msg.Payload))
				continue
			}
			hotelID, roomTypeID := parts[0], parts[1]
			log.Info("HOLD_EXPIRY", fmt.Sprintf("Room hold expired for hotel %s, room type %s", hotelID, roomTypeID))

			pending, err := svc.GetPendingReservations(hotelID)
			if err != nil {
				log.Error("HOLD_EXPIRY", fmt.Sprintf("Failed to list pending reservations for hotel %s: %v", hotelID, err))
				continue
			}
			for _, res := range pending {
				full, err := svc.GetReservation(res.ID)
				if err != nil {
					log.Error("HOLD_EXPIRY", fmt.Sprintf("Failed to load reservation %s: %v", res.ID, err))
					continue
				}
				if !holdsRoomType(full.Rooms, roomTypeID) {
					continue
				}
				if err := svc.CancelIfPending(full.ID, "hold expired"); err != nil {
					log.Error("HOLD_EXPIRY", fmt.Sprintf("Failed to cancel reservation %s: %v", full.ID, err))
				} else {
					log.Info("HOLD_EXPIRY", fmt.Sprintf("Reservation %s cancelled after hold expiry", full.ID))
				}
			}
		}
	}()
}

func holdsRoomType(rooms []models.RoomLine, roomTypeID string) bool {
	for _, room := range rooms {
		if room.RoomTypeID == roomTypeID {
			return true
		}
	}
	return false
}

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	_, err = redisClient.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result()
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		log.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return bunDB, redisClient
}

func buildGateway(cfg *config.Config, client *http.Client, log *logger.Logger) gateway.Gateway {
	switch cfg.Gateway.Mode {
	case "http":
		log.Info("PAYMENT", fmt.Sprintf("Using HTTP payment bridge at %s", cfg.Gateway.BaseURL))
		return gateway.NewHTTPGateway(client, cfg.Gateway.BaseURL, log)
	default:
		stripeGW, err := gateway.NewStripeGateway(cfg.Gateway.Currency, log)
		if err != nil {
			log.Fatal("PAYMENT", fmt.Sprintf("Stripe gateway init failed: %v", err))
		}
		log.Info("PAYMENT", "Using Stripe payment gateway")
		return stripeGW
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Reservation Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()

	client := &http.Client{
		Timeout: time.Second * 10,
	}
	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	reservationdb.Migrate(bunDB)

	producer := reservationkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ReservationEvents)
	log.Info("KAFKA", "Kafka producer initialized successfully")

	requiredTopics := []string{
		cfg.Kafka.Topics.ReservationEvents,
		cfg.Kafka.Topics.PaymentEvents,
	}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	qrGenerator := qr.NewGenerator(os.Getenv("QR_SECRET"))
	infoCache := payment.NewInfoCache(redisClient, cfg.Portal.SessionTTL)
	paymentGateway := buildGateway(cfg, client, log)
	selector := payment.NewSelector(paymentGateway, infoCache, qrGenerator, log)

	emitter := sse.NewPendingEventEmitter()

	svc := reservation.NewReservationService(
		&reservationdb.DB{Bun: bunDB},
		rediswrap.NewRedis(redisClient),
		producer,
		selector,
		paymentGateway,
		emitter,
		log,
	)

	handler := &api.Handler{
		ReservationService: svc,
		Logger:             log,
	}
	sseHandler := api.NewSSEHandler(log, emitter)

	// Settlement notifications from the payment bridge arrive over Kafka as
	// well as over the HTTP callback; both paths converge on ConfirmPayment.
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentEvents, cfg.Kafka.GroupID)
		defer consumer.Close()
		go consumer.Start(consumerCtx, func(notification kafka.PaymentNotification) {
			if _, err := svc.ConfirmPayment(notification.ReservationID, notification.TransactionID); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Failed to confirm payment for %s: %v", notification.ReservationID, err))
			}
		})
		log.Info("KAFKA", "Payment notification consumer started")
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/reservations", func(r chi.Router) {
				r.Post("/", handler.CreateReservation)
				r.Get("/{reservationId}", handler.GetReservation)
				r.Get("/{reservationId}/payment-status", handler.CheckPaymentStatus)
				r.Post("/{reservationId}/payment-option", handler.SelectPaymentOption)
				r.Post("/{reservationId}/payment-confirm", handler.ConfirmPayment)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireStaff)
					r.Post("/{reservationId}/approval", handler.ApproveReservation)
					r.Post("/{reservationId}/check-in", handler.CheckIn)
					r.Post("/{reservationId}/check-out", handler.CheckOut)
				})
			})
			log.Info("ROUTER", "Reservation routes registered under /api/v1/reservations")

			r.Get("/customers/{customerId}/reservations", handler.GetMyReservations)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireStaff)
				r.Get("/hotels/{hotelId}/reservations/pending", handler.ListPendingReservations)
				r.Get("/hotels/{hotelId}/reservations/pending/stream", sseHandler.HandlePendingReservations)
			})
			log.Info("ROUTER", "Staff routes registered under /api/v1/hotels")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info("REDIS", "Starting room hold expiry subscription")
	subscribeHoldExpiry(redisClient, svc, log)

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Reservation Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Reservation Service shutdown complete")
	}
}
