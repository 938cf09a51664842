package entities

import "github.com/wispberry-tech/wispy-admin/gateway"

// Each constructor returns a fresh descriptor, since Validate indexes it in place.

func NewsDescriptor() *gateway.Descriptor {
	return &gateway.Descriptor{
		Kind:  KindNews,
		Label: "news",
		Table: "news",
		Fields: []gateway.FieldMapping{
			{Wire: "title", Domain: "title", Type: gateway.Text},
			{Wire: "summary", Domain: "summary", Type: gateway.Text},
			{Wire: "content", Domain: "content", Type: gateway.Text},
			{Wire: "image_url", Domain: "imageUrl", Type: gateway.Text},
			{Wire: "category", Domain: "category", Type: gateway.Text},
			{Wire: "author", Domain: "author", Type: gateway.Text},
			{Wire: "published_at", Domain: "publishedAt", Type: gateway.Time},
			{Wire: "is_featured", Domain: "featured", Type: gateway.Bool},
		},
		DefaultOrder: gateway.OrderBy{Field: gateway.FieldCreatedAt, Direction: gateway.Desc},
	}
}

func SportDescriptor() *gateway.Descriptor {
	return &gateway.Descriptor{
		Kind:  KindSport,
		Label: "sports",
		Table: "sports",
		Fields: []gateway.FieldMapping{
			{Wire: "name", Domain: "name", Type: gateway.Text},
			{Wire: "description", Domain: "description", Type: gateway.Text},
			{Wire: "image_url", Domain: "imageUrl", Type: gateway.Text},
			{Wire: "schedule", Domain: "schedule", Type: gateway.Text},
			{Wire: "coach", Domain: "coach", Type: gateway.Text},
			{Wire: "is_active", Domain: "active", Type: gateway.Bool},
		},
		DefaultOrder: gateway.OrderBy{Field: gateway.FieldCreatedAt, Direction: gateway.Desc},
	}
}

// LiveMatchDescriptor orders by kick-off rather than creation time
func LiveMatchDescriptor() *gateway.Descriptor {
	return &gateway.Descriptor{
		Kind:  KindLiveMatch,
		Label: "live matches",
		Table: "live_matches",
		Fields: []gateway.FieldMapping{
			{Wire: "home_team", Domain: "homeTeam", Type: gateway.Text},
			{Wire: "away_team", Domain: "awayTeam", Type: gateway.Text},
			{Wire: "home_score", Domain: "homeScore", Type: gateway.Int},
			{Wire: "away_score", Domain: "awayScore", Type: gateway.Int},
			{Wire: "sport", Domain: "sport", Type: gateway.Text},
			{Wire: "status", Domain: "status", Type: gateway.Text},
			{Wire: "match_date", Domain: "matchDate", Type: gateway.Time},
			{Wire: "venue", Domain: "venue", Type: gateway.Text},
			{Wire: "stream_url", Domain: "streamUrl", Type: gateway.Text},
		},
		DefaultOrder: gateway.OrderBy{Field: "matchDate", Direction: gateway.Desc},
	}
}

func ProductDescriptor() *gateway.Descriptor {
	return &gateway.Descriptor{
		Kind:  KindProduct,
		Label: "products",
		Table: "products",
		Fields: []gateway.FieldMapping{
			{Wire: "name", Domain: "name", Type: gateway.Text},
			{Wire: "description", Domain: "description", Type: gateway.Text},
			{Wire: "price", Domain: "price", Type: gateway.Float},
			{Wire: "image_url", Domain: "imageUrl", Type: gateway.Text},
			{Wire: "category", Domain: "category", Type: gateway.Text},
			{Wire: "stock", Domain: "stock", Type: gateway.Int},
			{Wire: "is_available", Domain: "available", Type: gateway.Bool},
		},
		DefaultOrder: gateway.OrderBy{Field: gateway.FieldCreatedAt, Direction: gateway.Desc},
	}
}

func CommunityHighlightDescriptor() *gateway.Descriptor {
	return &gateway.Descriptor{
		Kind:  KindCommunityHighlight,
		Label: "community highlights",
		Table: "community_highlights",
		Fields: []gateway.FieldMapping{
			{Wire: "title", Domain: "title", Type: gateway.Text},
			{Wire: "description", Domain: "description", Type: gateway.Text},
			{Wire: "image_url", Domain: "imageUrl", Type: gateway.Text},
			{Wire: "event_date", Domain: "eventDate", Type: gateway.Time},
			{Wire: "location", Domain: "location", Type: gateway.Text},
		},
		DefaultOrder: gateway.OrderBy{Field: gateway.FieldCreatedAt, Direction: gateway.Desc},
	}
}

func RegistrationDescriptor() *gateway.Descriptor {
	return &gateway.Descriptor{
		Kind:  KindRegistration,
		Label: "registrations",
		Table: "registrations",
		Fields: []gateway.FieldMapping{
			{Wire: "full_name", Domain: "fullName", Type: gateway.Text},
			{Wire: "email", Domain: "email", Type: gateway.Text},
			{Wire: "phone", Domain: "phone", Type: gateway.Text},
			{Wire: "sport", Domain: "sport", Type: gateway.Text},
			{Wire: "age", Domain: "age", Type: gateway.Int},
			{Wire: "message", Domain: "message", Type: gateway.Text},
			{Wire: "status", Domain: "status", Type: gateway.Text},
		},
		DefaultOrder: gateway.OrderBy{Field: gateway.FieldCreatedAt, Direction: gateway.Desc},
	}
}
