package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	temporaryTokenBytes = 20
	TemporaryTokenTTL   = 20 * time.Minute
)

// TemporaryToken es un secreto de un solo uso: el texto plano viaja por correo,
// solo el hash y la expiracion se guardan.
type TemporaryToken struct {
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

// IssueTemporaryToken genera un token nuevo que expira TemporaryTokenTTL despues de now.
func IssueTemporaryToken(now time.Time) (TemporaryToken, error) {
	buf := make([]byte, temporaryTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return TemporaryToken{}, err
	}
	plaintext := hex.EncodeToString(buf)
	return TemporaryToken{
		Plaintext: plaintext,
		Hash:      HashTemporaryToken(plaintext),
		ExpiresAt: now.Add(TemporaryTokenTTL),
	}, nil
}

// HashTemporaryToken calcula el digest sha256 en hex que se guarda y se compara.
func HashTemporaryToken(plaintext string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(plaintext)))
	return hex.EncodeToString(sum[:])
}
