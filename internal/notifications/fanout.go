package notifications

import (
	"context"
	"errors"

	"agenda-backend/internal/appointments"
)

// Fanout delivers every event to all sinks. A failing sink does not stop the
// others; their errors are joined.
type Fanout struct {
	sinks []appointments.Notifier
}

// NewFanout drops nil sinks and returns nil when none remain.
func NewFanout(sinks ...appointments.Notifier) *Fanout {
	kept := make([]appointments.Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Fanout{sinks: kept}
}

func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

func (f *Fanout) AppointmentCreated(ctx context.Context, appt appointments.Appointment) error {
	return f.each(func(n appointments.Notifier) error { return n.AppointmentCreated(ctx, appt) })
}

func (f *Fanout) AppointmentStatusChanged(ctx context.Context, appt appointments.Appointment, previous string) error {
	return f.each(func(n appointments.Notifier) error { return n.AppointmentStatusChanged(ctx, appt, previous) })
}

func (f *Fanout) AppointmentReminder(ctx context.Context, appt appointments.Appointment) error {
	return f.each(func(n appointments.Notifier) error { return n.AppointmentReminder(ctx, appt) })
}

func (f *Fanout) each(call func(appointments.Notifier) error) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := call(sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
