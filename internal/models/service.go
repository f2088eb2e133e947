package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserSnapshot is a denormalized copy of a user's display fields, embedded
// into service documents at write time. It is not a live reference: renaming
// the user later does not change snapshots already embedded.
type UserSnapshot struct {
	UserID   string `json:"user_id" bson:"user_id"`
	UserName string `json:"user_name" bson:"user_name"`
}

// Coordinates is an optional geocoordinate pair attached to a location.
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Location is a free-text place description with optional coordinates.
type Location struct {
	PlaceName   string       `json:"place_name" bson:"place_name"`
	Coordinates *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
}

// Availability holds the free-form start/end of a service window.
type Availability struct {
	Start string `json:"start" bson:"start"`
	End   string `json:"end" bson:"end"`
}

// ReplyEntry is one message in a reply thread. Entries are immutable once
// appended and ordered by insertion, not by the client-supplied timestamp.
type ReplyEntry struct {
	Author    string `json:"author" bson:"author"`
	Content   string `json:"content" bson:"content"`
	Timestamp string `json:"timestamp" bson:"timestamp"`
}

// ServicePosting is the canonical service-board document stored in MongoDB.
// Requests and offers share this shape; the pet-specific fields are only
// meaningful when ServiceType is ServiceTypeRequest.
type ServicePosting struct {
	ID              primitive.ObjectID      `json:"id,omitempty" bson:"_id,omitempty"`
	UserID          string                  `json:"user_id" bson:"user_id"`
	UserName        string                  `json:"user_name" bson:"user_name"`
	ServiceType     int                     `json:"service_type" bson:"service_type"`
	ServiceCategory int                     `json:"service_category" bson:"service_category"`
	PetName         string                  `json:"pet_name,omitempty" bson:"pet_name,omitempty"`
	PetType         string                  `json:"pet_type,omitempty" bson:"pet_type,omitempty"`
	PetImage        string                  `json:"pet_image,omitempty" bson:"pet_image,omitempty"`
	Breed           string                  `json:"breed,omitempty" bson:"breed,omitempty"`
	Location        *Location               `json:"location,omitempty" bson:"location,omitempty"`
	Availability    *Availability           `json:"availability,omitempty" bson:"availability,omitempty"`
	MatchedUser     *UserSnapshot           `json:"matched_user,omitempty" bson:"matched_user,omitempty"`
	Status          int                     `json:"status" bson:"status"`
	Replies         map[string][]ReplyEntry `json:"replies,omitempty" bson:"replies,omitempty"`
	Notes           string                  `json:"notes,omitempty" bson:"notes,omitempty"`
	PostTime        string                  `json:"post_time" bson:"post_time"`
}

// CreateServiceRequestInput is the multipart form payload for posting a
// service request. The pet image file travels separately as "petImage".
type CreateServiceRequestInput struct {
	UserName        string   `form:"userName" validate:"required"`
	PetName         string   `form:"petName" validate:"required"`
	PetType         string   `form:"petType" validate:"required"`
	PetBreed        string   `form:"petBreed"`
	ServiceCategory string   `form:"serviceCategory" validate:"required"`
	Notes           string   `form:"notes"`
	PostTime        string   `form:"postTime"`
	Location        string   `form:"location"`
	Coordinates     []string `form:"coordinates"`
	AvailableStart  string   `form:"availableStart"`
	AvailableEnd    string   `form:"availableEnd"`
}

// CreateServiceOfferInput is the form payload for posting a service offer.
// PetType here is the type of pet the offerer services.
type CreateServiceOfferInput struct {
	UserName        string   `form:"userName" validate:"required"`
	PetType         string   `form:"petType" validate:"required"`
	ServiceCategory string   `form:"serviceCategory" validate:"required"`
	Notes           string   `form:"notes"`
	PostTime        string   `form:"postTime"`
	Location        string   `form:"location"`
	Coordinates     []string `form:"coordinates"`
	AvailableStart  string   `form:"availableStart"`
	AvailableEnd    string   `form:"availableEnd"`
}

// PostReplyInput is the form payload for appending a reply to a posting.
// ThreadOwner defaults to the author, which starts a new conversation lane.
type PostReplyInput struct {
	ServiceID    string `form:"serviceId" validate:"required"`
	UserName     string `form:"userName" validate:"required"`
	ReplyContent string `form:"replyContent"`
	Timestamp    string `form:"timestamp"`
	ThreadOwner  string `form:"threadOwner"`
}

// ConfirmMatchInput is the JSON payload for confirming a match.
type ConfirmMatchInput struct {
	ServiceID   string `json:"service_id" validate:"required"`
	MatchedUser string `json:"matched_user" validate:"required"`
}
