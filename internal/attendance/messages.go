package attendance

import (
	"fmt"
	"math"
	"time"

	"github.com/skariga/absenku/internal/model"
)

var messages = map[model.Outcome]string{
	model.OutcomeAccepted:               "Location received.",
	model.OutcomeForwarded:              "Forwarded locations are not accepted. Share your own live location from your device.",
	model.OutcomeStaticLocation:         "A one-time location is not enough. Use \"Share Live Location\" and keep it running.",
	model.OutcomeFakeGPS:                "Your location looks spoofed. Turn off any mock-location app and share again.",
	model.OutcomeLowAccuracy:            "Your GPS signal is too imprecise. Move somewhere with a clear view of the sky and keep sharing.",
	model.OutcomeNoSiteAssigned:         "You have not been placed at an internship site yet. Contact your teacher.",
	model.OutcomeOutOfRadius:            "You are outside the attendance radius of your site. Move closer and keep sharing.",
	model.OutcomeAlreadyValid:           "Your attendance for this direction is already recorded today.",
	model.OutcomeCheckoutBeforeSchedule: "It is too early to check out.",
	model.OutcomeNoOpenCheckIn:          "You have no validated check-in today, so you cannot check out yet.",
	model.OutcomeNotRegistered:          "You are not registered yet. Register before recording attendance.",
	model.OutcomeAccountPending:         "Your account is waiting for teacher approval.",
}

// FailureText is shown when a collaborator failed and nothing was recorded.
const FailureText = "Something went wrong while recording your attendance. Please send your location again."

// Message returns the student-facing text for an outcome.
func Message(o model.Outcome) string {
	if m, ok := messages[o]; ok {
		return m
	}
	return "Your location could not be processed."
}

func outOfRadiusText(distance float64, site *model.Site) string {
	if site == nil {
		return Message(model.OutcomeOutOfRadius)
	}
	return fmt.Sprintf("You are %.0f m from %s (max %.0f m). Move closer and keep sharing.",
		distance, siteName(site), site.RadiusMeters)
}

func checkoutTooEarlyText(at model.ClockTime) string {
	return fmt.Sprintf("It is too early to check out. Check-out opens at %s.", at)
}

func directionLabel(d model.Direction) string {
	if d == model.CheckOut {
		return "Check-out"
	}
	return "Check-in"
}

func minutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

func startedText(d model.Direction, remaining time.Duration, rec *model.AttendanceRecord) string {
	s := fmt.Sprintf("%s started. Keep sharing live location for %d more minutes.", directionLabel(d), minutes(remaining))
	if d == model.CheckIn && rec.LatenessMinutes > 0 {
		s += fmt.Sprintf(" You are %d minutes late.", rec.LatenessMinutes)
	}
	return s
}

func progressText(d model.Direction, remaining time.Duration) string {
	if remaining <= 0 {
		return fmt.Sprintf("%s verified, finalizing.", directionLabel(d))
	}
	return fmt.Sprintf("%s in progress, %d minutes remaining.", directionLabel(d), minutes(remaining))
}

func recoveredText(remaining time.Duration) string {
	return fmt.Sprintf("Signal restored. Verification continues, %d minutes remaining.", minutes(remaining))
}

func intentText(d model.Direction) string {
	return fmt.Sprintf("%s: share your live location now and keep it on.", directionLabel(d))
}

func siteName(s *model.Site) string {
	if s.Name != "" {
		return s.Name
	}
	return "your site"
}
