package models

import "time"

// Group is a consensus unit for group grading within a section.
type Group struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	SectionID   uint         `gorm:"not null;index" json:"section_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Memberships []Membership `json:"memberships,omitempty"`
}

// Membership enrolls a user into a section, optionally inside a group.
// A user holds at most one membership per section.
type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_membership_user_section" json:"user_id"`
	SectionID uint      `gorm:"not null;uniqueIndex:idx_membership_user_section" json:"section_id"`
	GroupID   *uint     `gorm:"index" json:"group_id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
