package domain

import "errors"

var (
	// ErrInvalidInput marks bad coordinates or parameters; raised before any I/O.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIncidentSourceUnavailable means incidents could not be loaded; routing degrades to distance only.
	ErrIncidentSourceUnavailable = errors.New("incident source unavailable")

	// ErrProviderRequestFailed is a single failed routing request.
	ErrProviderRequestFailed = errors.New("routing provider request failed")

	// ErrNoRouteFound means no usable candidate survived.
	ErrNoRouteFound = errors.New("no route found")

	// ErrUnexpectedScoring flags a numeric failure while scoring one candidate.
	ErrUnexpectedScoring = errors.New("unexpected scoring error")

	// ErrGeocodingFailed means the reverse geocoder could not answer.
	ErrGeocodingFailed = errors.New("geocoding failed")
)
