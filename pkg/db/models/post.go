package models

import "time"

// Post is the container entity: it owns at most one Media record and may sit
// in a reply thread below a parent post. Deleting a parent severs the thread
// link on its replies rather than cascading.
type Post struct {
	ID        uint      `gorm:"column:id;primaryKey"`
	AuthorID  uint      `gorm:"column:author_id;not null"`
	Head      string    `gorm:"column:head;size:255;not null"`
	Body      string    `gorm:"column:body"`
	ParentID  *uint     `gorm:"column:parent_id;constraint:OnDelete:SET NULL"`
	MediaID   *uint     `gorm:"column:media_id"`
	Media     *Media    `gorm:"foreignKey:MediaID"`
	Replies   []Post    `gorm:"foreignKey:ParentID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
