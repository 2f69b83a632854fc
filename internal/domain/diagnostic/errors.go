package diagnostic

import "errors"

var (
	ErrDiagnosticNotFound = errors.New("diagnostic not found")
	ErrDoctorNotFound     = errors.New("doctor not found")
)
