package models

import (
	"sort"
	"time"
)

// maxPostTime is the sort key for postings with a missing or unparseable
// post_time. Malformed timestamps surface at the top of the listing instead
// of breaking the sort; deliberate defensive behavior, not a bug.
var maxPostTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// ServicePostingView is the boundary shape of a posting: opaque ids rendered
// as display strings, category/status codes decoded to labels.
type ServicePostingView struct {
	ID              string                  `json:"id"`
	UserID          string                  `json:"user_id"`
	UserName        string                  `json:"user_name"`
	ServiceType     int                     `json:"service_type"`
	ServiceCategory string                  `json:"service_category"`
	PetName         string                  `json:"pet_name,omitempty"`
	PetType         string                  `json:"pet_type,omitempty"`
	PetImage        string                  `json:"pet_image,omitempty"`
	Breed           string                  `json:"breed,omitempty"`
	Location        *Location               `json:"location,omitempty"`
	Availability    *Availability           `json:"availability,omitempty"`
	MatchedUser     *UserSnapshot           `json:"matched_user,omitempty"`
	Status          string                  `json:"status"`
	Replies         map[string][]ReplyEntry `json:"replies,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
	PostTime        string                  `json:"post_time"`
}

// NewServicePostingView decodes a stored posting for client consumption.
func NewServicePostingView(p ServicePosting) ServicePostingView {
	return ServicePostingView{
		ID:              p.ID.Hex(),
		UserID:          p.UserID,
		UserName:        p.UserName,
		ServiceType:     p.ServiceType,
		ServiceCategory: DecodeCategory(p.ServiceCategory),
		PetName:         p.PetName,
		PetType:         p.PetType,
		PetImage:        p.PetImage,
		Breed:           p.Breed,
		Location:        p.Location,
		Availability:    p.Availability,
		MatchedUser:     p.MatchedUser,
		Status:          DecodeStatus(p.Status),
		Replies:         p.Replies,
		Notes:           p.Notes,
		PostTime:        p.PostTime,
	}
}

// parsePostTime parses a client-stamped ISO-8601 post time, tolerating a
// missing timezone suffix. Anything unparseable sorts as maxPostTime.
func parsePostTime(s string) time.Time {
	if s == "" {
		return maxPostTime
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return maxPostTime
}

// SortByPostTimeDesc orders postings newest-first by post_time, with
// malformed or missing timestamps first (see maxPostTime).
func SortByPostTimeDesc(postings []ServicePosting) {
	sort.SliceStable(postings, func(i, j int) bool {
		return parsePostTime(postings[i].PostTime).After(parsePostTime(postings[j].PostTime))
	})
}
