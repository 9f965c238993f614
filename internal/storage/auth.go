package storage

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the factor existing accounts were hashed with; changing it
// would invalidate none of them (bcrypt embeds the cost) but new hashes
// stay comparable.
const bcryptCost = 10

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
