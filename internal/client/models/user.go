package models

import "time"

// User is the profile payload returned by the server. The client passes it
// through for display and does not interpret its fields.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
