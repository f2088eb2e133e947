package models

import (
	"strconv"

	"github.com/yuehan04/pawconnect/backend/internal/apperrors"
)

// Service type codes, immutable after creation.
const (
	ServiceTypeRequest = 0
	ServiceTypeOffer   = 1
)

// Status codes stored on the service document.
const (
	StatusPending   = 0
	StatusMatched   = 1
	StatusCompleted = 2
	StatusCanceled  = 3
)

var categoryToCode = map[string]int{
	"pet_spa":           0,
	"pet_walking":       1,
	"pet_daycare":       2,
	"pet_house_sitting": 3,
}

var codeToCategory = map[int]string{
	0: "pet_spa",
	1: "pet_walking",
	2: "pet_daycare",
	3: "pet_house_sitting",
}

var codeToStatus = map[int]string{
	StatusPending:   "pending",
	StatusMatched:   "matched",
	StatusCompleted: "completed",
	StatusCanceled:  "canceled",
}

// EncodeCategory maps a category label to its stored integer code. An
// unknown label is a client input error.
func EncodeCategory(label string) (int, error) {
	code, ok := categoryToCode[label]
	if !ok {
		return 0, apperrors.InvalidInput("unknown service category " + strconv.Quote(label))
	}
	return code, nil
}

// DecodeCategory maps a stored code back to its label. Unrecognized codes
// (legacy or corrupt data) decode to the decimal form of the raw code so
// listing reads never fail on old documents.
func DecodeCategory(code int) string {
	if label, ok := codeToCategory[code]; ok {
		return label
	}
	return strconv.Itoa(code)
}

// DecodeStatus mirrors DecodeCategory for the status code. Only used at the
// listing boundary; writes go through the integer constants directly.
func DecodeStatus(code int) string {
	if label, ok := codeToStatus[code]; ok {
		return label
	}
	return strconv.Itoa(code)
}

// CanTransition reports whether a status transition is allowed:
// pending -> matched -> completed, and pending or matched -> canceled.
// Completed and canceled are terminal.
func CanTransition(from, to int) bool {
	switch from {
	case StatusPending:
		return to == StatusMatched || to == StatusCanceled
	case StatusMatched:
		return to == StatusCompleted || to == StatusCanceled
	default:
		return false
	}
}

// StatusSources lists the statuses a posting must currently be in for a
// transition to the given status to be allowed. The repository's
// compare-and-swap filters derive from this, so the transition table is
// defined once, in CanTransition.
func StatusSources(to int) []int {
	var sources []int
	for _, from := range []int{StatusPending, StatusMatched, StatusCompleted, StatusCanceled} {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}
