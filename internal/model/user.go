package model

import "time"

type User struct {
	ID           string      `json:"_id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Avatar       string      `json:"avatar"`
	Role         string      `json:"-"`
	Calendar     *OAuthToken `json:"-"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// OAuthToken is the linked calendar credential of a user.
type OAuthToken struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Expiry       time.Time `json:"-"`
}

// UserSummary is the public projection of a user embedded in projects and tasks.
type UserSummary struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

// Profile is returned by the auth endpoints.
type Profile struct {
	UserSummary
	CalendarConnected bool      `json:"calendarConnected"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (u *User) Profile() Profile {
	return Profile{
		UserSummary:       u.Summary(),
		CalendarConnected: u.Calendar != nil && u.Calendar.RefreshToken != "",
		CreatedAt:         u.CreatedAt,
	}
}
