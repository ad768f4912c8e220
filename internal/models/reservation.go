package models

import "time"

// Reservation statuses
const (
	ReservationStatusPending   = "pending"
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusCancelled = "cancelled"
)

// Restaurant locations accepted by the intake form
const (
	LocationVillage    = "village"
	LocationDowntown   = "downtown"
	LocationLosCorales = "los-corales"
)

func IsValidReservationStatus(status string) bool {
	switch status {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCancelled:
		return true
	}
	return false
}

type Reservation struct {
	ID              int64     `json:"id"`
	FullName        string    `json:"full_name"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	Location        string    `json:"location"`
	ReservationDate string    `json:"reservation_date"` // YYYY-MM-DD
	ReservationTime string    `json:"reservation_time"` // HH:MM
	Guests          int       `json:"guests"`
	Comments        string    `json:"comments"`
	Source          string    `json:"source"`
	UserAgent       string    `json:"user_agent,omitempty"`
	ClientIP        string    `json:"client_ip,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RecipientFor returns the destination contact for a channel, or empty when
// the reservation has none on file.
func (r *Reservation) RecipientFor(channel Channel) string {
	switch channel {
	case ChannelEmail:
		return r.Email
	case ChannelWhatsApp:
		return r.Phone
	}
	return ""
}
