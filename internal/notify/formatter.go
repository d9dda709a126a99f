// Package notify formats appointment status messages and delivers them to
// patients and doctors.
package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

type MessageType string

const (
	MessageBookingRequested MessageType = "booking_requested"
	MessageScheduled        MessageType = "scheduled"
	MessageConfirmed        MessageType = "confirmed"
	MessageRejected         MessageType = "rejected"
	MessageCompleted        MessageType = "completed"
	MessageCancelled        MessageType = "cancelled"
)

// FallbackMessage is rendered for message types without a template.
const FallbackMessage = "Appointment status update"

const displayLayout = "Monday, January 02 at 03:04 PM"

// Party is one side of an appointment.
type Party struct {
	Name  string
	Email string
}

// Event describes a status change to notify about.
type Event struct {
	Type          MessageType
	AppointmentID uint
	Date          time.Time
	Patient       Party
	Doctor        Party
}

var patientTemplates = map[MessageType]string{
	MessageBookingRequested: "Your appointment request with Dr. {{.Doctor}} has been submitted and is being processed.",
	MessageScheduled:        "Your appointment with Dr. {{.Doctor}} has been scheduled for {{.Date}}.",
	MessageConfirmed:        "Your appointment with Dr. {{.Doctor}} on {{.Date}} has been confirmed.",
	MessageRejected:         "Unfortunately, your appointment request with Dr. {{.Doctor}} could not be accommodated. Please contact us to reschedule.",
	MessageCompleted:        "Your appointment with Dr. {{.Doctor}} on {{.Date}} has been marked as completed.",
	MessageCancelled:        "Your appointment with Dr. {{.Doctor}} on {{.Date}} has been cancelled.",
}

var doctorTemplates = map[MessageType]string{
	MessageBookingRequested: "New appointment request from {{.Patient}} for {{.Date}}. Please review and confirm.",
	MessageScheduled:        "Appointment scheduled with {{.Patient}} for {{.Date}}.",
	MessageConfirmed:        "You have confirmed the appointment with {{.Patient}} on {{.Date}}.",
	MessageRejected:         "You have rejected the appointment request from {{.Patient}}.",
	MessageCompleted:        "The appointment with {{.Patient}} on {{.Date}} is completed.",
	MessageCancelled:        "The appointment with {{.Patient}} on {{.Date}} has been cancelled.",
}

var subjects = map[MessageType]string{
	MessageBookingRequested: "Appointment request received",
	MessageScheduled:        "Appointment scheduled",
	MessageConfirmed:        "Appointment confirmed",
	MessageRejected:         "Appointment request declined",
	MessageCompleted:        "Appointment completed",
	MessageCancelled:        "Appointment cancelled",
}

type templateData struct {
	Doctor  string
	Patient string
	Date    string
}

// Formatter renders patient and doctor messages. Templates are parsed once.
type Formatter struct {
	loc     *time.Location
	patient map[MessageType]*template.Template
	doctor  map[MessageType]*template.Template
}

func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{
		loc:     loc,
		patient: mustParse("patient", patientTemplates),
		doctor:  mustParse("doctor", doctorTemplates),
	}
}

func mustParse(prefix string, src map[MessageType]string) map[MessageType]*template.Template {
	out := make(map[MessageType]*template.Template, len(src))
	for typ, text := range src {
		out[typ] = template.Must(template.New(prefix + "_" + string(typ)).Parse(text))
	}
	return out
}

func (f *Formatter) data(ev Event) templateData {
	d := templateData{Doctor: ev.Doctor.Name, Patient: ev.Patient.Name}
	if d.Doctor == "" {
		d.Doctor = "Unknown"
	}
	if d.Patient == "" {
		d.Patient = "Unknown Patient"
	}
	if !ev.Date.IsZero() {
		d.Date = ev.Date.In(f.loc).Format(displayLayout)
	}
	return d
}

// PatientMessage renders the message sent to the patient.
func (f *Formatter) PatientMessage(ev Event) string {
	return render(f.patient[ev.Type], f.data(ev))
}

// DoctorMessage renders the message sent to the doctor.
func (f *Formatter) DoctorMessage(ev Event) string {
	return render(f.doctor[ev.Type], f.data(ev))
}

func (f *Formatter) Subject(typ MessageType) string {
	if s, ok := subjects[typ]; ok {
		return s
	}
	return FallbackMessage
}

func render(tmpl *template.Template, data templateData) string {
	if tmpl == nil {
		return FallbackMessage
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("%s (%s)", FallbackMessage, err)
	}
	return buf.String()
}
