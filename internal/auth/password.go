package auth

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// argon2id, параметры фиксированы; соль хранится префиксом хэша.
const (
	saltLen    = 16
	argonTime  = 1
	argonMem   = 64 * 1024
	argonLanes = 1
	argonLen   = 32
)

func HashPassword(password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMem, argonLanes, argonLen)
	return append(salt, key...), nil
}

func VerifyPassword(stored []byte, candidate string) bool {
	if len(stored) != saltLen+argonLen {
		return false
	}
	salt, want := stored[:saltLen], stored[saltLen:]
	got := argon2.IDKey([]byte(candidate), salt, argonTime, argonMem, argonLanes, argonLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}
