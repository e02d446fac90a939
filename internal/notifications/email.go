package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"agenda-backend/internal/appointments"
)

// EmailNotifier mails the appointment holder on every lifecycle event and
// copies new bookings to the business inbox when one is set.
type EmailNotifier struct {
	mailer     Mailer
	adminEmail string
	log        *slog.Logger
}

func NewEmailNotifier(mailer Mailer, adminEmail string, log *slog.Logger) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, adminEmail: adminEmail, log: log}
}

func (n *EmailNotifier) AppointmentCreated(ctx context.Context, appt appointments.Appointment) error {
	body, err := render(createdTmpl, appt)
	if err != nil {
		return err
	}
	if err := n.send(ctx, "created", appt, "Demande de rendez-vous recue", body); err != nil {
		return err
	}

	if n.adminEmail != "" {
		adminBody, err := render(adminTmpl, appt)
		if err == nil {
			_, err = n.mailer.SendHTML(ctx, n.adminEmail, "", fmt.Sprintf("Nouvelle reservation - %s %s", appt.Date, appt.TimeSlot), adminBody)
		}
		if err != nil {
			n.log.Warn("notifications email: admin copy failed",
				slog.String("appointment_id", appt.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (n *EmailNotifier) AppointmentStatusChanged(ctx context.Context, appt appointments.Appointment, previous string) error {
	body, err := render(statusTmpl, appt)
	if err != nil {
		return err
	}
	return n.send(ctx, "status_changed", appt, statusSubject(appt.Status), body)
}

func (n *EmailNotifier) AppointmentReminder(ctx context.Context, appt appointments.Appointment) error {
	body, err := render(reminderTmpl, appt)
	if err != nil {
		return err
	}
	return n.send(ctx, "reminder", appt, "Rappel de rendez-vous - demain "+appt.TimeSlot, body)
}

func (n *EmailNotifier) send(ctx context.Context, event string, appt appointments.Appointment, subject, body string) error {
	messageID, err := n.mailer.SendHTML(ctx, appt.Email, appt.Name, subject, body)
	if err != nil {
		return err
	}
	n.log.Info("notifications email: sent",
		slog.String("event", event),
		slog.String("appointment_id", appt.ID),
		slog.String("message_id", messageID),
	)
	return nil
}
