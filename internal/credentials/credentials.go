// Package credentials supplies the Amazon account used for automatic sign-in.
package credentials

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EmailEnv    = "AMAZON_EMAIL"
	PasswordEnv = "AMAZON_PASSWORD"
)

type Credentials struct {
	Email    string
	Password string
}

// Valid reports whether both parts are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}

// Store returns the account to sign in with; ok is false when none is set.
type Store interface {
	Credentials() (Credentials, bool)
}

// EnvStore reads AMAZON_EMAIL and AMAZON_PASSWORD from the process
// environment. Values already set in the environment win over the .env file.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore loads the given .env files (or ".env" when none are given) and
// returns a store over the resulting environment. Missing files are ignored.
func NewEnvStore(files ...string) *EnvStore {
	_ = godotenv.Load(files...)
	return &EnvStore{lookup: os.LookupEnv}
}

func (s *EnvStore) Credentials() (Credentials, bool) {
	email, _ := s.lookup(EmailEnv)
	password, _ := s.lookup(PasswordEnv)
	c := Credentials{Email: strings.TrimSpace(email), Password: password}
	return c, c.Valid()
}

// Static always returns the same credentials.
type Static Credentials

func (s Static) Credentials() (Credentials, bool) {
	c := Credentials(s)
	return c, c.Valid()
}

// None is a store without credentials; sign-in goes straight to the manual
// fallback.
var None Store = Static{}
