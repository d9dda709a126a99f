package notify

import (
	"context"
	"log/slog"
	"time"
)

// Recipients selects who receives a notification.
type Recipients string

const (
	ToPatient Recipients = "patient"
	ToDoctor  Recipients = "doctor"
	ToBoth    Recipients = "both"
)

const unknownRecipient = "unknown"

// Notification is the record of one message sent (or attempted) to one party.
type Notification struct {
	Recipient     string    `json:"recipient"`
	RecipientType string    `json:"recipient_type"`
	Message       string    `json:"message"`
	SentAt        time.Time `json:"sent_at"`
	Delivered     bool      `json:"delivered"`
	Error         string    `json:"error,omitempty"`
}

type Notifier struct {
	formatter *Formatter
	sender    EmailSender
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotifier(formatter *Formatter, sender EmailSender, logger *slog.Logger) *Notifier {
	if formatter == nil {
		formatter = NewFormatter(time.UTC)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &Notifier{formatter: formatter, sender: sender, logger: logger, now: time.Now}
}

// WithClock replaces the clock used for sent_at.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// Notify formats and delivers messages for ev. Delivery failures are logged
// and reported on the returned notification, never returned as an error.
func (n *Notifier) Notify(ctx context.Context, ev Event, to Recipients) []Notification {
	var out []Notification
	if to == ToPatient || to == ToBoth {
		out = append(out, n.deliver(ctx, ev, ToPatient, ev.Patient, n.formatter.PatientMessage(ev)))
	}
	if to == ToDoctor || to == ToBoth {
		out = append(out, n.deliver(ctx, ev, ToDoctor, ev.Doctor, n.formatter.DoctorMessage(ev)))
	}
	return out
}

func (n *Notifier) deliver(ctx context.Context, ev Event, kind Recipients, party Party, message string) Notification {
	nt := Notification{
		Recipient:     party.Email,
		RecipientType: string(kind),
		Message:       message,
		SentAt:        n.now().UTC(),
	}
	if nt.Recipient == "" {
		nt.Recipient = unknownRecipient
		nt.Error = "recipient has no email address"
		return nt
	}

	err := n.sender.Send(ctx, EmailMessage{
		To:      party.Email,
		ToName:  party.Name,
		Subject: n.formatter.Subject(ev.Type),
		Body:    message,
	})
	if err != nil {
		n.logger.Warn("notification delivery failed",
			"appointment_id", ev.AppointmentID,
			"recipient_type", string(kind),
			"message_type", string(ev.Type),
			"error", err,
		)
		nt.Error = err.Error()
		return nt
	}
	nt.Delivered = true
	return nt
}
