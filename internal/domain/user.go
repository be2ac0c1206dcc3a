package domain

import "strings"

type User struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	TimeZone          string `json:"time_zone"`
	Locale            string `json:"locale"`
	DefaultScheduleID *int64 `json:"default_schedule_id,omitempty"`
}

// Host is a user eligible to run an event, annotated once at load time with
// its role in the event's host list.
type Host struct {
	User
	IsFixed  bool
	Priority int
	Weight   int
}

func NewHost(u User, ref HostRef) Host {
	h := Host{
		User:     u,
		IsFixed:  ref.IsFixed,
		Priority: DefaultHostPriority,
		Weight:   DefaultHostWeight,
	}
	if ref.Priority != nil {
		h.Priority = *ref.Priority
	}
	if ref.Weight != nil && *ref.Weight > 0 {
		h.Weight = *ref.Weight
	}
	return h
}

func (h Host) HasEmail(email string) bool {
	return email != "" && strings.EqualFold(h.Email, strings.TrimSpace(email))
}

// Person is an email identity taking part in a booking.
type Person struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	TimeZone string `json:"time_zone"`
	Locale   string `json:"locale,omitempty"`
}

func (u User) Person() Person {
	return Person{Email: u.Email, Name: u.Name, TimeZone: u.TimeZone, Locale: u.Locale}
}
