package db

import "time"

// Ingredient is a row of the reference table of harmful ingredients.
type Ingredient struct {
	ID          int64
	Name        string
	Description string
	AddedAt     time.Time
}

// User is a local account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Confirmed    bool
	CreatedAt    time.Time
}

// Scan is a recorded analysis. Matches holds the JSON encoded match list.
type Scan struct {
	ID            int64
	UserID        string
	Image         string
	ExtractedText string
	Matches       string
	Error         string
	ScannedAt     time.Time
}
