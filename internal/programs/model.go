package programs

import (
	"math"
	"strings"
	"time"
)

// Program is a bookable walking-football session offering. ratingAvg and
// ratingCount are derived from the ratings subcollection and must not be
// written directly by clients.
type Program struct {
	ID                  string    `firestore:"-" json:"id"`
	Name                string    `firestore:"name" json:"name"`
	Location            string    `firestore:"location" json:"location"`
	Address             string    `firestore:"address" json:"address"`
	Schedule            string    `firestore:"schedule" json:"schedule"`
	Difficulty          string    `firestore:"difficulty" json:"difficulty"`
	Instructor          string    `firestore:"instructor" json:"instructor"`
	InstructorBio       string    `firestore:"instructorBio" json:"instructorBio"`
	Description         string    `firestore:"description" json:"description"`
	MaxParticipants     int       `firestore:"maxParticipants" json:"maxParticipants"`
	CurrentParticipants int       `firestore:"currentParticipants" json:"currentParticipants"`
	Available           bool      `firestore:"available" json:"available"`
	Cost                *float64  `firestore:"cost" json:"cost"`
	Equipment           string    `firestore:"equipment" json:"equipment"`
	Accessibility       string    `firestore:"accessibility" json:"accessibility"`
	AgeRange            string    `firestore:"ageRange" json:"ageRange"`
	HealthRequirements  string    `firestore:"healthRequirements" json:"healthRequirements"`
	Lat                 *float64  `firestore:"lat" json:"lat"`
	Lng                 *float64  `firestore:"lng" json:"lng"`
	RatingAvg           float64   `firestore:"ratingAvg" json:"ratingAvg"`
	RatingCount         int       `firestore:"ratingCount" json:"ratingCount"`
	CreatedAt           time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
	UpdatedAt           time.Time `firestore:"updatedAt,serverTimestamp" json:"updatedAt"`
}

// Rating is one user's 1–5 star review of a program, keyed by normalized
// email (one document per program/email pair).
type Rating struct {
	Email     string    `firestore:"email" json:"email"`
	Stars     int       `firestore:"stars" json:"stars"`
	Comment   string    `firestore:"comment" json:"comment"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`

	// ProgramID is populated by the cross-program flat listing.
	ProgramID string `firestore:"-" json:"programId,omitempty"`
}

// Booking is a reserved seat, keyed by normalized email.
type Booking struct {
	Email       string    `firestore:"email" json:"email"`
	DisplayName string    `firestore:"displayName" json:"displayName"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
}

// ProgramInput is the create payload. Pointer fields distinguish "absent"
// from zero so defaults can apply.
type ProgramInput struct {
	Name                string   `json:"name"`
	Location            string   `json:"location"`
	Address             string   `json:"address"`
	Schedule            string   `json:"schedule"`
	Difficulty          string   `json:"difficulty"`
	Instructor          string   `json:"instructor"`
	InstructorBio       string   `json:"instructorBio"`
	Description         string   `json:"description"`
	MaxParticipants     int      `json:"maxParticipants"`
	CurrentParticipants int      `json:"currentParticipants"`
	Available           *bool    `json:"available"`
	Cost                *float64 `json:"cost"`
	Equipment           string   `json:"equipment"`
	Accessibility       string   `json:"accessibility"`
	AgeRange            string   `json:"ageRange"`
	HealthRequirements  string   `json:"healthRequirements"`
	Lat                 *float64 `json:"lat"`
	Lng                 *float64 `json:"lng"`
}

// NewProgram applies the creation defaults: difficulty falls back to
// "Beginner", availability defaults to true, counters start clamped at zero
// and derived rating fields start empty.
func NewProgram(in ProgramInput) Program {
	difficulty := strings.TrimSpace(in.Difficulty)
	if difficulty == "" {
		difficulty = "Beginner"
	}

	available := true
	if in.Available != nil {
		available = *in.Available
	}

	return Program{
		Name:                strings.TrimSpace(in.Name),
		Location:            in.Location,
		Address:             in.Address,
		Schedule:            in.Schedule,
		Difficulty:          difficulty,
		Instructor:          in.Instructor,
		InstructorBio:       in.InstructorBio,
		Description:         in.Description,
		MaxParticipants:     maxInt(0, in.MaxParticipants),
		CurrentParticipants: maxInt(0, in.CurrentParticipants),
		Available:           available,
		Cost:                in.Cost,
		Equipment:           in.Equipment,
		Accessibility:       in.Accessibility,
		AgeRange:            in.AgeRange,
		HealthRequirements:  in.HealthRequirements,
		Lat:                 in.Lat,
		Lng:                 in.Lng,
		RatingAvg:           0,
		RatingCount:         0,
	}
}

// NormalizeEmail lowercases and trims an address; the result is the document
// key for ratings and bookings.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Round2 rounds to two decimal places for display and API responses.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
