package valueobject

import (
	"errors"
	"strings"
)

var (
	ErrInvalidServiceType = errors.New("invalid service type")
)

type ServiceType string

const (
	ServiceAirtime ServiceType = "airtime"
	ServiceData    ServiceType = "data"
)

// NewServiceType creates a ServiceType value object
func NewServiceType(service string) (ServiceType, error) {
	s := ServiceType(strings.ToLower(service))
	switch s {
	case ServiceAirtime, ServiceData:
		return s, nil
	default:
		return "", ErrInvalidServiceType
	}
}

// String returns the string representation of the service type
func (s ServiceType) String() string {
	return string(s)
}
