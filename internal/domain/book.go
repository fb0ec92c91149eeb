package domain

import "time"

type Book struct {
	ID              int32     `json:"id"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       string    `json:"publisher,omitempty"`
	PublicationYear int32     `json:"publication_year,omitempty"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Language        string    `json:"language,omitempty"`
	Pages           int32     `json:"pages,omitempty"`
	Location        string    `json:"location,omitempty"`
	TotalCopies     int32     `json:"total_copies"`
	AvailableCopies int32     `json:"available_copies"`
	CreatedOn       time.Time `json:"created_on"`
	UpdatedOn       time.Time `json:"updated_on"`
}

// IsAvailable reports whether at least one copy can be loaned out.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}
