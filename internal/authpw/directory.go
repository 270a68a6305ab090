// Package authpw checks actor passwords against a users directory file.
package authpw

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCredentials = errors.New("invalid user id or password")

const minPasswordLength = 8

// hashCost is lowered in tests.
var hashCost = bcrypt.DefaultCost

// User is one directory entry. PasswordHash is a bcrypt hash.
type User struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Email        string `yaml:"email" json:"email,omitempty"`
	Role         string `yaml:"role" json:"role"`
	PasswordHash string `yaml:"passwordHash" json:"-"`
}

// Directory is an immutable set of users keyed by id.
type Directory struct {
	users map[string]User
}

type directoryFile struct {
	Users []User `yaml:"users"`
}

func LoadDirectory(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open users file: %w", err)
	}
	defer f.Close()
	return ParseDirectory(f)
}

// ParseDirectory reads a YAML document with a top-level users list.
func ParseDirectory(r io.Reader) (*Directory, error) {
	var file directoryFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	d := &Directory{users: make(map[string]User, len(file.Users))}
	for i, u := range file.Users {
		u.ID = strings.TrimSpace(u.ID)
		if u.ID == "" {
			return nil, fmt.Errorf("users[%d]: id is required", i)
		}
		if _, dup := d.users[u.ID]; dup {
			return nil, fmt.Errorf("users[%d]: duplicate id %q", i, u.ID)
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("user %s: passwordHash is required", u.ID)
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("user %s: passwordHash is not a bcrypt hash: %w", u.ID, err)
		}
		if strings.TrimSpace(u.Name) == "" {
			u.Name = u.ID
		}
		d.users[u.ID] = u
	}
	return d, nil
}

// SignIn returns the user when password matches. Unknown ids and wrong
// passwords fail the same way.
func (d *Directory) SignIn(userID, password string) (User, error) {
	user, ok := d.users[strings.TrimSpace(userID)]
	if !ok || password == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (d *Directory) Lookup(userID string) (User, bool) {
	user, ok := d.users[userID]
	return user, ok
}

// Email returns the user's address, if the directory has one.
func (d *Directory) Email(userID string) (string, bool) {
	user, ok := d.users[userID]
	if !ok || strings.TrimSpace(user.Email) == "" {
		return "", false
	}
	return user.Email, true
}

func (d *Directory) IDs() []string {
	ids := make([]string, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HashPassword produces a hash suitable for the passwordHash field.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
