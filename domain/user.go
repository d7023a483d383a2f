// Package domain contains core concepts of the chat relay.
// This file defines users and their identities.
// No runtime, network, or UI logic should be added here.
package domain

// UserID identifies a user across connections and stored messages.
type UserID int64

// User is a directory entry. The ID is assigned by the directory on creation.
type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}
