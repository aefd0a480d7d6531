package users

import (
	"golang.org/x/crypto/bcrypt"
)

// Account is a user together with its password hash, as held by a backend.
// The client never sees the hash.
type Account struct {
	User         User
	PasswordHash string
}

type Repo interface {
	Upsert(account *Account) error
	GetByEmail(email string) (*Account, error)
	GetByID(id string) (*Account, error)
	List(offset, limit int) ([]*Account, error)
	SetBiometric(id string, enabled bool) error
}

func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
