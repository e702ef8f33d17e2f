package db

import (
	"context"
	"log"

	"ms-reservations/internal/models"

	"github.com/uptrace/bun"
)

// Migrate creates the reservation tables if they do not exist. Production
// schema changes go through the golang-migrate runner; this keeps dev and
// test databases usable without migration files.
func Migrate(bunDB *bun.DB) {
	ctx := context.Background()

	if _, err := bunDB.NewCreateTable().
		Model((*models.Reservation)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		log.Fatalf("failed to create reservations table: %v", err)
	}

	if _, err := bunDB.NewCreateTable().
		Model((*models.RoomLine)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		log.Fatalf("failed to create reservation_rooms table: %v", err)
	}
}
