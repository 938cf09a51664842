// Package entities declares the admin console's content kinds: their domain
// structs, the descriptors mapping them onto store tables, and a registry that
// builds one gateway per kind.
package entities

import "time"

// Entity kind identifiers
const (
	KindNews               = "news"
	KindSport              = "sport"
	KindLiveMatch          = "live_match"
	KindProduct            = "product"
	KindCommunityHighlight = "community_highlight"
	KindRegistration       = "registration"
)

// News is a published article
type News struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Summary     string    `json:"summary" validate:"max=500"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"imageUrl" validate:"omitempty,url"`
	Category    string    `json:"category" validate:"max=50"`
	Author      string    `json:"author" validate:"max=100"`
	PublishedAt time.Time `json:"publishedAt"`
	Featured    bool      `json:"featured"`
}

// Sport is a discipline offered by the club
type Sport struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
	Schedule    string `json:"schedule" validate:"max=200"`
	Coach       string `json:"coach" validate:"max=100"`
	Active      bool   `json:"active"`
}

// Match statuses
const (
	MatchScheduled = "scheduled"
	MatchLive      = "live"
	MatchFinished  = "finished"
	MatchPostponed = "postponed"
)

// LiveMatch is a fixture with its running score. An empty status is left to the
// store default (scheduled).
type LiveMatch struct {
	HomeTeam  string    `json:"homeTeam" validate:"required,max=100"`
	AwayTeam  string    `json:"awayTeam" validate:"required,max=100"`
	HomeScore int       `json:"homeScore" validate:"gte=0"`
	AwayScore int       `json:"awayScore" validate:"gte=0"`
	Sport     string    `json:"sport" validate:"max=100"`
	Status    string    `json:"status,omitempty" validate:"omitempty,oneof=scheduled live finished postponed"`
	MatchDate time.Time `json:"matchDate"`
	Venue     string    `json:"venue" validate:"max=200"`
	StreamURL string    `json:"streamUrl" validate:"omitempty,url"`
}

// Product is a shop item
type Product struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	ImageURL    string  `json:"imageUrl" validate:"omitempty,url"`
	Category    string  `json:"category" validate:"max=50"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Available   bool    `json:"available"`
}

// CommunityHighlight is a past or upcoming community event
type CommunityHighlight struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl" validate:"omitempty,url"`
	EventDate   time.Time `json:"eventDate"`
	Location    string    `json:"location" validate:"max=200"`
}

// Registration statuses
const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// Registration is a sign-up request submitted from the public site. An empty
// status is left to the store default (pending).
type Registration struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Phone    string `json:"phone" validate:"max=30"`
	Sport    string `json:"sport" validate:"max=100"`
	Age      int    `json:"age" validate:"gte=0,lte=120"`
	Message  string `json:"message" validate:"max=2000"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
}
