// Package template renders notification texts for reservation events.
// Building is pure: no I/O, no clock, same input always yields same output.
package template

import (
	"fmt"
	"strings"

	"reservations-api/internal/models"
)

// Message is a rendered channel text. WhatsApp ignores the subject.
type Message struct {
	Subject string
	Body    string
}

// Rendered holds the per-channel texts for one reservation/status pair.
type Rendered struct {
	Email    Message
	WhatsApp Message
}

// ForChannel returns the rendered message for a channel.
func (r Rendered) ForChannel(channel models.Channel) Message {
	if channel == models.ChannelWhatsApp {
		return r.WhatsApp
	}
	return r.Email
}

var locationLabels = map[string]string{
	models.LocationVillage:    "Village",
	models.LocationDowntown:   "Downtown",
	models.LocationLosCorales: "Los Corales",
}

type statusCopy struct {
	subjectWord string
	message     string
}

var statusCopies = map[string]statusCopy{
	models.ReservationStatusPending: {
		subjectWord: "pendiente",
		message:     "Hemos recibido tu reserva y esta pendiente de confirmacion.",
	},
	models.ReservationStatusConfirmed: {
		subjectWord: "confirmada",
		message:     "Tu reserva esta confirmada. Te esperamos!",
	},
	models.ReservationStatusCancelled: {
		subjectWord: "cancelada",
		message:     "Tu reserva ha sido cancelada. Contactanos si deseas reprogramar.",
	},
}

// Build renders the email and WhatsApp texts for a reservation at a target
// status. An unrecognized status falls back to the pending copy; the builder
// never fails.
func Build(reservation *models.Reservation, status, note string) Rendered {
	sc, ok := statusCopies[status]
	if !ok {
		sc = statusCopies[models.ReservationStatusPending]
	}

	location := locationLabels[reservation.Location]
	if location == "" {
		location = reservation.Location
	}

	lines := []string{
		fmt.Sprintf("Reserva #%d - La Casita de Yeya", reservation.ID),
		sc.message,
		"",
		fmt.Sprintf("Nombre: %s", reservation.FullName),
		fmt.Sprintf("Localidad: %s", location),
		fmt.Sprintf("Fecha: %s", reservation.ReservationDate),
		fmt.Sprintf("Hora: %s", reservation.ReservationTime),
		fmt.Sprintf("Personas: %d", reservation.Guests),
	}
	if note != "" {
		lines = append(lines, fmt.Sprintf("Nota: %s", note))
	}

	body := strings.Join(lines, "\n")
	subject := fmt.Sprintf("Reserva #%d %s - La Casita de Yeya", reservation.ID, sc.subjectWord)

	return Rendered{
		Email:    Message{Subject: subject, Body: body},
		WhatsApp: Message{Body: body},
	}
}
