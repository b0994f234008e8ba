// server/domain/memory.go
package domain

import "time"

// Memory is a single diary entry.
type Memory struct {
	ID        string    `json:"_id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"-"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Validate reports which required fields are empty.
func (m Memory) Validate() error {
	return RequireFields(map[string]string{
		"title":   m.Title,
		"content": m.Content,
	}, "title", "content")
}
