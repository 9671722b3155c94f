// file: internals/features/library/model/library_model.go
package model

// LibraryHolderName is the reserved holder that owns every book not checked out.
const LibraryHolderName = "Library"

/*
=========================================
Model: holders
=========================================
*/

type HolderModel struct {
	ID   uint   `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex:uq_holders_name;column:name" json:"name"`
}

func (HolderModel) TableName() string { return "holders" }

/*
=========================================
Model: books
=========================================
*/

type BookModel struct {
	ID            uint   `gorm:"primaryKey;column:id" json:"id"`
	Title         string `gorm:"type:text;not null;column:title" json:"title"`
	Author        string `gorm:"type:text;not null;column:author" json:"author"`
	PublishedYear int    `gorm:"not null;column:published_year" json:"published_year"`

	// FK to holders; deleting a holder deletes every book it holds
	HolderID uint         `gorm:"not null;index:idx_books_holder;column:holder_id" json:"holder_id"`
	Holder   *HolderModel `gorm:"foreignKey:HolderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (BookModel) TableName() string { return "books" }
