// Package geo validates user-supplied positions and formats addresses.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tasksync/internal/task"
)

// ErrLocationUnavailable is returned when a position cannot be obtained or is invalid.
var ErrLocationUnavailable = errors.New("location unavailable")

// AddressPreviewLen is the number of address characters shown in list views.
const AddressPreviewLen = 35

// Address holds reverse-geocoded address components.
type Address struct {
	Street       string
	StreetNumber string
	City         string
	Region       string
	PostalCode   string
	Country      string
}

// Format joins the non-empty components with ", ".
func (a Address) Format() string {
	return FormatAddress(a.Street, a.StreetNumber, a.City, a.Region, a.PostalCode, a.Country)
}

// FormatAddress joins the non-empty parts with ", ".
func FormatAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// ParseCoords parses a latitude and longitude given as decimal degrees.
func ParseCoords(lat, lon string) (task.Coords, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return task.Coords{}, fmt.Errorf("%w: invalid latitude %q", ErrLocationUnavailable, lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return task.Coords{}, fmt.Errorf("%w: invalid longitude %q", ErrLocationUnavailable, lon)
	}
	c := task.Coords{Latitude: la, Longitude: lo}
	if err := Validate(c); err != nil {
		return task.Coords{}, err
	}
	return c, nil
}

// Validate checks that c is a finite position on the globe.
func Validate(c task.Coords) error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude out of range: %v", ErrLocationUnavailable, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude out of range: %v", ErrLocationUnavailable, c.Longitude)
	}
	return nil
}

// Preview shortens an address for list display.
func Preview(address string) string {
	r := []rune(address)
	if len(r) <= AddressPreviewLen {
		return address
	}
	return string(r[:AddressPreviewLen]) + "..."
}
