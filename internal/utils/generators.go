package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// GenerateReservationID creates the server-assigned reservation identifier.
func GenerateReservationID() string {
	return "res_" + uuid.NewString()
}

// GenerateLineID creates an identifier for a reservation room line.
func GenerateLineID() string {
	return "line_" + uuid.NewString()
}

func GenerateTransactionID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("txn_%d_%09d", timestamp, randomNum.Int64())
}
