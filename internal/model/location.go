package model

import "github.com/skariga/absenku/internal/geo"

// LocationUpdate is one ping from a student's device.
type LocationUpdate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // horizontal accuracy in meters; nil when not reported
	Live      bool     `json:"live"`               // part of a continuous live-location stream
	Forwarded bool     `json:"forwarded"`          // relayed from another chat rather than sent by the device
}

// Point returns the reported position.
func (u LocationUpdate) Point() geo.Point {
	return geo.Point{Lat: u.Latitude, Lng: u.Longitude}
}
