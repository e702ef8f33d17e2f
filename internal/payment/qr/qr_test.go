package qr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47}

func TestGeneratePaymentQRProducesPNG(t *testing.T) {
	gen := NewGenerator("secret")

	png, err := gen.GeneratePaymentQR(PaymentClaim{
		ReservationID: "res_1",
		InstrumentRef: "pi_1",
		Amount:        300,
		IssuedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, len(png) > 8)
	assert.Equal(t, pngMagic, png[:4])
}

func TestGeneratePaymentQRWithAnySecretLength(t *testing.T) {
	// Secrets are hashed to a fixed AES key size, so length never matters.
	for _, secret := range []string{"", "s", "a-much-longer-secret-than-thirty-two-bytes-for-sure"} {
		gen := NewGenerator(secret)
		png, err := gen.GeneratePaymentQR(PaymentClaim{ReservationID: "res_1"})
		require.NoError(t, err)
		assert.Equal(t, pngMagic, png[:4])
	}
}

func TestEncodePayloadProducesPNG(t *testing.T) {
	gen := NewGenerator("secret")

	png, err := gen.EncodePayload("00020101021238570010A000000727")
	require.NoError(t, err)
	assert.Equal(t, pngMagic, png[:4])
}

func TestEncryptedClaimsDiffer(t *testing.T) {
	// Random IV: the same claim never encrypts to the same ciphertext.
	gen := NewGenerator("secret")
	claim := PaymentClaim{ReservationID: "res_1", Amount: 100}

	data := []byte(`{"reservation_id":"res_1"}`)
	first, err := encryptAES(data, gen.secret)
	require.NoError(t, err)
	second, err := encryptAES(data, gen.secret)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = gen.GeneratePaymentQR(claim)
	assert.NoError(t, err)
}
