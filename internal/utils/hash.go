package utils

import "golang.org/x/crypto/bcrypt"

// HashCode returns a bcrypt hash of a one-time verification code.
func HashCode(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckCode compares a bcrypt hashed code with its possible plaintext equivalent.
func CheckCode(hashedCode, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedCode), []byte(code)) == nil
}
