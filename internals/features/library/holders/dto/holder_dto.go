package dto

import (
	"strings"

	model "library_backend/internals/features/library/model"
)

//
// ========= Request DTO =========
//

// POST and PUT: name wajib
type HolderRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (r *HolderRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

// PATCH: semua field opsional
type HolderPatchRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=255"`
}

func (r *HolderPatchRequest) Normalize() {
	if r.Name != nil {
		v := strings.TrimSpace(*r.Name)
		r.Name = &v
	}
}

//
// ========= Response DTO =========
//

// HolderBook is a book nested under its holder, so it carries no holder itself.
type HolderBook struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedYear int    `json:"published_year"`
	HolderID      uint   `json:"holder_id"`
}

type HolderResponse struct {
	ID    uint         `json:"id"`
	Name  string       `json:"name"`
	Books []HolderBook `json:"books"`
}

func ToHolderResponse(h model.HolderModel, books []model.BookModel) HolderResponse {
	out := HolderResponse{ID: h.ID, Name: h.Name, Books: make([]HolderBook, 0, len(books))}
	for _, b := range books {
		out.Books = append(out.Books, HolderBook{
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			PublishedYear: b.PublishedYear,
			HolderID:      b.HolderID,
		})
	}
	return out
}

// ToHolderResponseList groups books under their holders, keeping the order of both slices.
func ToHolderResponseList(holders []model.HolderModel, books []model.BookModel) []HolderResponse {
	byHolder := make(map[uint][]model.BookModel, len(holders))
	for _, b := range books {
		byHolder[b.HolderID] = append(byHolder[b.HolderID], b)
	}
	out := make([]HolderResponse, 0, len(holders))
	for _, h := range holders {
		out = append(out, ToHolderResponse(h, byHolder[h.ID]))
	}
	return out
}
