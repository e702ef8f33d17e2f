package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

// PaymentClaim is the content encoded into a payment QR: enough for the
// payment bridge to match an incoming transfer to its reservation.
type PaymentClaim struct {
	ReservationID string    `json:"reservation_id"`
	InstrumentRef string    `json:"instrument_ref"`
	Amount        float64   `json:"amount"`
	IssuedAt      time.Time `json:"issued_at"`
}

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// GeneratePaymentQR encrypts the claim and renders it as a 256px QR PNG.
func (g *Generator) GeneratePaymentQR(claim PaymentClaim) ([]byte, error) {
	data, err := json.Marshal(claim)
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// EncodePayload renders a gateway-issued payload as a QR PNG without
// touching its contents.
func (g *Generator) EncodePayload(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
