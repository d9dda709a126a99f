package appointments

import "errors"

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrNotAppointmentDoctor = errors.New("unauthorized: not your appointment")
	ErrNotOwner             = errors.New("not authorized to access this appointment")
	ErrForbiddenRole        = errors.New("role not permitted for this action")
	ErrInvalidAction        = errors.New("invalid action, use 'confirm' or 'reject'")
	ErrAlreadyDecided       = errors.New("appointment has already been decided")
	ErrInvalidDate          = errors.New("invalid appointment date")
	ErrPastDate             = errors.New("appointment date must be in the future")
	ErrInvalidStatus        = errors.New("invalid appointment status")
)
