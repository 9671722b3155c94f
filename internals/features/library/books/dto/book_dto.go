package dto

import (
	"strings"

	model "library_backend/internals/features/library/model"
)

//
// ========= Request DTO =========
//

// POST and PUT. holder_id boleh kosong: POST memakai holder Library,
// PUT mempertahankan holder yang sekarang.
type BookRequest struct {
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author" validate:"required"`
	PublishedYear *int   `json:"published_year" validate:"required"`
	HolderID      *uint  `json:"holder_id" validate:"omitempty,gt=0"`
}

func (r *BookRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
}

func (r *BookRequest) ToModel(holderID uint) model.BookModel {
	return model.BookModel{
		Title:         r.Title,
		Author:        r.Author,
		PublishedYear: *r.PublishedYear,
		HolderID:      holderID,
	}
}

// PATCH: semua field opsional
type BookPatchRequest struct {
	Title         *string `json:"title" validate:"omitempty,min=1"`
	Author        *string `json:"author" validate:"omitempty,min=1"`
	PublishedYear *int    `json:"published_year"`
	HolderID      *uint   `json:"holder_id" validate:"omitempty,gt=0"`
}

func (r *BookPatchRequest) Normalize() {
	for _, p := range []*string{r.Title, r.Author} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

// Updates lists the columns that PATCH sets.
func (r *BookPatchRequest) Updates() map[string]any {
	out := map[string]any{}
	if r.Title != nil {
		out["title"] = *r.Title
	}
	if r.Author != nil {
		out["author"] = *r.Author
	}
	if r.PublishedYear != nil {
		out["published_year"] = *r.PublishedYear
	}
	if r.HolderID != nil {
		out["holder_id"] = *r.HolderID
	}
	return out
}

//
// ========= Response DTO =========
//

type BookHolder struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type BookResponse struct {
	ID            uint        `json:"id"`
	Title         string      `json:"title"`
	Author        string      `json:"author"`
	PublishedYear int         `json:"published_year"`
	HolderID      uint        `json:"holder_id"`
	Holder        *BookHolder `json:"holder"`
}

// ToBookResponse expects b.Holder to be preloaded; without it holder is null.
func ToBookResponse(b model.BookModel) BookResponse {
	out := BookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		PublishedYear: b.PublishedYear,
		HolderID:      b.HolderID,
	}
	if b.Holder != nil {
		out.Holder = &BookHolder{ID: b.Holder.ID, Name: b.Holder.Name}
	}
	return out
}

func ToBookResponseList(books []model.BookModel) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, ToBookResponse(b))
	}
	return out
}
