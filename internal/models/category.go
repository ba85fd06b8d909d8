package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Category is the closed set of sports an event can screen
type Category string

const (
	CategoryFootball   Category = "football"
	CategoryCricket    Category = "cricket"
	CategoryBasketball Category = "basketball"
	CategoryTennis     Category = "tennis"
	CategoryMotorsport Category = "motorsport"
)

// Categories lists every supported category
var Categories = []Category{
	CategoryFootball,
	CategoryCricket,
	CategoryBasketball,
	CategoryTennis,
	CategoryMotorsport,
}

// Valid reports whether c is a supported category
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// EventDetails is the category specific part of an event.
// The set of implementations is closed; see DecodeDetails.
type EventDetails interface {
	Category() Category
	Validate() error
	isEventDetails()
}

// FootballDetails describes a football fixture
type FootballDetails struct {
	HomeTeam    string `json:"homeTeam"`
	AwayTeam    string `json:"awayTeam"`
	Competition string `json:"competition"`
}

func (FootballDetails) Category() Category { return CategoryFootball }
func (FootballDetails) isEventDetails()    {}

func (d FootballDetails) Validate() error {
	return requireTeams(d.HomeTeam, d.AwayTeam)
}

// CricketDetails describes a cricket match
type CricketDetails struct {
	TeamA  string `json:"teamA"`
	TeamB  string `json:"teamB"`
	Format string `json:"format"`
}

func (CricketDetails) Category() Category { return CategoryCricket }
func (CricketDetails) isEventDetails()    {}

func (d CricketDetails) Validate() error {
	if err := requireTeams(d.TeamA, d.TeamB); err != nil {
		return err
	}
	switch strings.ToUpper(d.Format) {
	case "T20", "ODI", "TEST", "T10":
		return nil
	default:
		return Validationf("cricket format must be one of T20, ODI, TEST, T10")
	}
}

// BasketballDetails describes a basketball game
type BasketballDetails struct {
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
	League   string `json:"league"`
}

func (BasketballDetails) Category() Category { return CategoryBasketball }
func (BasketballDetails) isEventDetails()    {}

func (d BasketballDetails) Validate() error {
	return requireTeams(d.HomeTeam, d.AwayTeam)
}

// TennisDetails describes a tennis match
type TennisDetails struct {
	PlayerOne  string `json:"playerOne"`
	PlayerTwo  string `json:"playerTwo"`
	Tournament string `json:"tournament"`
}

func (TennisDetails) Category() Category { return CategoryTennis }
func (TennisDetails) isEventDetails()    {}

func (d TennisDetails) Validate() error {
	if strings.TrimSpace(d.PlayerOne) == "" || strings.TrimSpace(d.PlayerTwo) == "" {
		return Validationf("both players are required")
	}
	if strings.EqualFold(d.PlayerOne, d.PlayerTwo) {
		return Validationf("players must differ")
	}
	return nil
}

// MotorsportDetails describes a race weekend session
type MotorsportDetails struct {
	Series  string `json:"series"`
	Race    string `json:"race"`
	Session string `json:"session"`
}

func (MotorsportDetails) Category() Category { return CategoryMotorsport }
func (MotorsportDetails) isEventDetails()    {}

func (d MotorsportDetails) Validate() error {
	if strings.TrimSpace(d.Series) == "" || strings.TrimSpace(d.Race) == "" {
		return Validationf("series and race are required")
	}
	return nil
}

func requireTeams(a, b string) error {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return Validationf("both teams are required")
	}
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return Validationf("a team cannot play itself")
	}
	return nil
}

// DecodeDetails decodes raw details into the variant selected by category.
// Unknown categories and unknown fields are rejected.
func DecodeDetails(category Category, raw json.RawMessage) (EventDetails, error) {
	var details EventDetails
	switch category {
	case CategoryFootball:
		details = &FootballDetails{}
	case CategoryCricket:
		details = &CricketDetails{}
	case CategoryBasketball:
		details = &BasketballDetails{}
	case CategoryTennis:
		details = &TennisDetails{}
	case CategoryMotorsport:
		details = &MotorsportDetails{}
	default:
		return nil, Validationf("unknown category %q", category)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, Validationf("details are required for category %s", category)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(details); err != nil {
		return nil, Validationf("invalid %s details: %v", category, err)
	}

	// hand back value types so callers never share the decoded pointer
	switch d := details.(type) {
	case *FootballDetails:
		return *d, nil
	case *CricketDetails:
		return *d, nil
	case *BasketballDetails:
		return *d, nil
	case *TennisDetails:
		return *d, nil
	case *MotorsportDetails:
		return *d, nil
	}
	return nil, Validationf("unknown category %q", category)
}
