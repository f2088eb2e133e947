package models

import (
	"strconv"

	"gorm.io/gorm"
)

// User is a directory entry resolved when embedding poster and counterparty
// snapshots into service postings (PostgreSQL).
type User struct {
	gorm.Model  `json:"-"`
	ID          uint   `json:"id" gorm:"primaryKey"`
	UserName    string `json:"user_name" gorm:"uniqueIndex"`
	Email       string `json:"email" gorm:"uniqueIndex"`
	FirebaseUID string `json:"firebase_uid,omitempty" gorm:"uniqueIndex"`
}

// Snapshot renders the user's display fields for embedding into a posting.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		UserID:   strconv.FormatUint(uint64(u.ID), 10),
		UserName: u.UserName,
	}
}
