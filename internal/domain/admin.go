package domain

import "time"

// Admin is a dashboard operator account used by the built-in identity provider.
type Admin struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}
