package model

// Outcome is the result of classifying and applying one location update.
// Everything except OutcomeAccepted is a rejection the student can correct.
type Outcome string

const (
	OutcomeAccepted               Outcome = "ACCEPTED"
	OutcomeForwarded              Outcome = "FORWARDED"
	OutcomeStaticLocation         Outcome = "STATIC_LOCATION"
	OutcomeFakeGPS                Outcome = "FAKE_GPS"
	OutcomeLowAccuracy            Outcome = "LOW_ACCURACY"
	OutcomeNoSiteAssigned         Outcome = "NO_SITE_ASSIGNED"
	OutcomeOutOfRadius            Outcome = "OUT_OF_RADIUS"
	OutcomeAlreadyValid           Outcome = "ALREADY_VALID"
	OutcomeCheckoutBeforeSchedule Outcome = "CHECKOUT_BEFORE_SCHEDULE"
	OutcomeNoOpenCheckIn          Outcome = "NO_OPEN_CHECKIN"
	OutcomeNotRegistered          Outcome = "NOT_REGISTERED"
	OutcomeAccountPending         Outcome = "ACCOUNT_PENDING"
)

func (o Outcome) String() string {
	return string(o)
}

// Accepted reports whether the update counted towards presence.
func (o Outcome) Accepted() bool {
	return o == OutcomeAccepted
}
