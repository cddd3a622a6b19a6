package utils

import "golang.org/x/crypto/bcrypt"

// IsPasswordHash reports whether value is already a bcrypt hash.
func IsPasswordHash(value string) bool {
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// EnsurePasswordHash hashes value unless it is already a hash, so saving the
// same record twice never re-hashes.
func EnsurePasswordHash(value string, cost int) (string, error) {
	if IsPasswordHash(value) {
		return value, nil
	}
	return HashPassword(value, cost)
}
