package valueobject

import (
	"errors"
	"strings"
)

var (
	ErrInvalidNetwork = errors.New("invalid network")
)

type NetworkType string

const (
	NetworkMTN      NetworkType = "mtn"
	NetworkGlo      NetworkType = "glo"
	NetworkAirtel   NetworkType = "airtel"
	NetworkEtisalat NetworkType = "9mobile"
)

// NewNetworkType creates a NetworkType value object from user input.
// Input is lowercased before matching.
func NewNetworkType(network string) (NetworkType, error) {
	n := NetworkType(strings.ToLower(network))
	switch n {
	case NetworkMTN, NetworkGlo, NetworkAirtel, NetworkEtisalat:
		return n, nil
	default:
		return "", ErrInvalidNetwork
	}
}

// String returns the string representation of the network
func (n NetworkType) String() string {
	return string(n)
}

// VendorNetworkID returns the numeric network id the vendor's data API uses.
func (n NetworkType) VendorNetworkID() int {
	switch n {
	case NetworkMTN:
		return 1
	case NetworkGlo:
		return 2
	case NetworkAirtel:
		return 3
	case NetworkEtisalat:
		return 4
	default:
		return 0
	}
}
