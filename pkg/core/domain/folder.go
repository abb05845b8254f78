package domain

import "time"

// Folder groups an owner's links. Deleting a folder unfiles its links.
type Folder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	LinkCount int64     `json:"link_count"`
}
