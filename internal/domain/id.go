package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string. IDs sort by creation time, so intake
// message IDs in logs follow arrival order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
