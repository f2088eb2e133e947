// Package builder assembles canonical service postings from partial,
// order-independent field assignments. Two variants exist: RequestBuilder
// for service requests (pet fields are first-class) and OfferBuilder for
// service offers (pet name/image/breed stay empty). Building has no side
// effects; persistence is the caller's job.
package builder

import (
	"github.com/yuehan04/pawconnect/backend/internal/apperrors"
	"github.com/yuehan04/pawconnect/backend/internal/models"
)

// PostingBuilder is the capability shared by both builder variants.
// Variant-specific setters live on the concrete types so chaining keeps
// its concrete return type.
type PostingBuilder interface {
	Build() (*models.ServicePosting, error)
	Reset()
}

func newPosting(serviceType int) *models.ServicePosting {
	return &models.ServicePosting{
		ServiceType: serviceType,
		Status:      models.StatusPending,
	}
}

// RequestBuilder builds a service request posting. Required before Build:
// poster, pet name, pet type, category.
type RequestBuilder struct {
	posting     *models.ServicePosting
	categorySet bool
	err         error
}

// NewRequestBuilder returns a builder with a fresh accumulator.
func NewRequestBuilder() *RequestBuilder {
	b := &RequestBuilder{}
	b.Reset()
	return b
}

// Reset discards the accumulator. Build calls this so a returned posting is
// never aliased by a later build on the same builder.
func (b *RequestBuilder) Reset() {
	b.posting = newPosting(models.ServiceTypeRequest)
	b.categorySet = false
	b.err = nil
}

// SetPoster records the creator's denormalized snapshot.
func (b *RequestBuilder) SetPoster(user *models.User) *RequestBuilder {
	snap := user.Snapshot()
	b.posting.UserID = snap.UserID
	b.posting.UserName = snap.UserName
	return b
}

func (b *RequestBuilder) SetPetName(petName string) *RequestBuilder {
	b.posting.PetName = petName
	return b
}

func (b *RequestBuilder) SetPetType(petType string) *RequestBuilder {
	b.posting.PetType = petType
	return b
}

// SetPetImage records the blob-store reference of the pet image; the raw
// bytes never pass through the builder.
func (b *RequestBuilder) SetPetImage(imageRef string) *RequestBuilder {
	b.posting.PetImage = imageRef
	return b
}

func (b *RequestBuilder) SetBreed(breed string) *RequestBuilder {
	b.posting.Breed = breed
	return b
}

// SetCategory encodes the category label. An unknown label poisons the
// build; Build reports it as invalid input.
func (b *RequestBuilder) SetCategory(label string) *RequestBuilder {
	code, err := models.EncodeCategory(label)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.posting.ServiceCategory = code
	b.categorySet = true
	return b
}

func (b *RequestBuilder) SetLocation(location *models.Location) *RequestBuilder {
	b.posting.Location = location
	return b
}

func (b *RequestBuilder) SetAvailability(availability *models.Availability) *RequestBuilder {
	b.posting.Availability = availability
	return b
}

// SetMatchedUser records the counterparty snapshot. A nil snapshot clears
// any previous match rather than leaving a stale value, so "unmatch" goes
// through the same setter.
func (b *RequestBuilder) SetMatchedUser(snapshot *models.UserSnapshot) *RequestBuilder {
	b.posting.MatchedUser = snapshot
	return b
}

func (b *RequestBuilder) SetNotes(notes string) *RequestBuilder {
	b.posting.Notes = notes
	return b
}

func (b *RequestBuilder) SetPostTime(postTime string) *RequestBuilder {
	b.posting.PostTime = postTime
	return b
}

// Build validates the request's required fields and returns the assembled
// posting. The accumulator is reset either way; the builder is single-use
// per product.
func (b *RequestBuilder) Build() (*models.ServicePosting, error) {
	posting, categorySet, err := b.posting, b.categorySet, b.err
	b.Reset()
	if err != nil {
		return nil, err
	}
	switch {
	case posting.UserID == "":
		return nil, apperrors.InvalidInput("service request is missing its poster")
	case posting.PetName == "":
		return nil, apperrors.InvalidInput("service request is missing the pet name")
	case posting.PetType == "":
		return nil, apperrors.InvalidInput("service request is missing the pet type")
	case !categorySet:
		return nil, apperrors.InvalidInput("service request is missing the service category")
	}
	return posting, nil
}

// OfferBuilder builds a service offer posting. Required before Build:
// poster, pet type (the type of pet the offerer services), category.
type OfferBuilder struct {
	posting     *models.ServicePosting
	categorySet bool
	err         error
}

// NewOfferBuilder returns a builder with a fresh accumulator.
func NewOfferBuilder() *OfferBuilder {
	b := &OfferBuilder{}
	b.Reset()
	return b
}

// Reset discards the accumulator.
func (b *OfferBuilder) Reset() {
	b.posting = newPosting(models.ServiceTypeOffer)
	b.categorySet = false
	b.err = nil
}

// SetPoster records the creator's denormalized snapshot.
func (b *OfferBuilder) SetPoster(user *models.User) *OfferBuilder {
	snap := user.Snapshot()
	b.posting.UserID = snap.UserID
	b.posting.UserName = snap.UserName
	return b
}

func (b *OfferBuilder) SetPetType(petType string) *OfferBuilder {
	b.posting.PetType = petType
	return b
}

// SetCategory encodes the category label; unknown labels poison the build.
func (b *OfferBuilder) SetCategory(label string) *OfferBuilder {
	code, err := models.EncodeCategory(label)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.posting.ServiceCategory = code
	b.categorySet = true
	return b
}

func (b *OfferBuilder) SetLocation(location *models.Location) *OfferBuilder {
	b.posting.Location = location
	return b
}

func (b *OfferBuilder) SetAvailability(availability *models.Availability) *OfferBuilder {
	b.posting.Availability = availability
	return b
}

// SetMatchedUser records the counterparty snapshot; nil clears the match.
func (b *OfferBuilder) SetMatchedUser(snapshot *models.UserSnapshot) *OfferBuilder {
	b.posting.MatchedUser = snapshot
	return b
}

func (b *OfferBuilder) SetNotes(notes string) *OfferBuilder {
	b.posting.Notes = notes
	return b
}

func (b *OfferBuilder) SetPostTime(postTime string) *OfferBuilder {
	b.posting.PostTime = postTime
	return b
}

// Build validates the offer's required fields and returns the assembled
// posting, resetting the accumulator.
func (b *OfferBuilder) Build() (*models.ServicePosting, error) {
	posting, categorySet, err := b.posting, b.categorySet, b.err
	b.Reset()
	if err != nil {
		return nil, err
	}
	switch {
	case posting.UserID == "":
		return nil, apperrors.InvalidInput("service offer is missing its poster")
	case posting.PetType == "":
		return nil, apperrors.InvalidInput("service offer is missing the pet type")
	case !categorySet:
		return nil, apperrors.InvalidInput("service offer is missing the service category")
	}
	return posting, nil
}
