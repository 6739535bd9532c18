// Package classifier decides whether a single location update can count
// towards sustained presence at a student's assigned site.
//
// Classification is pure: it reads the update, the site, and whether a
// verification session is already running, and returns an Outcome. All
// persistence and session bookkeeping belongs to the caller.
package classifier

import (
	"time"

	"github.com/skariga/absenku/internal/geo"
	"github.com/skariga/absenku/internal/model"
)

// DefaultMaxAccuracy is the largest horizontal accuracy, in meters, that is
// still precise enough to judge a 100 m geofence.
const DefaultMaxAccuracy = 200.0

// Input is everything the classifier looks at for one ping.
type Input struct {
	Update      model.LocationUpdate
	Site        *model.Site // nil when the student has no placement
	SessionOpen bool        // a verification session is already tracking this student today
	Now         time.Time
}

// Result is the classification of one ping.
type Result struct {
	Outcome  model.Outcome
	Distance float64   // meters from the site center; only set once distance was computed
	Demote   bool      // OUT_OF_RADIUS against a running session: demote it instead of rejecting
	At       time.Time // time the ping was judged
}

// Classifier applies the ordered rejection rules.
type Classifier struct {
	// MaxAccuracy is the accuracy threshold in meters. Zero means DefaultMaxAccuracy.
	MaxAccuracy float64
}

// New returns a Classifier with the given accuracy threshold.
func New(maxAccuracy float64) *Classifier {
	return &Classifier{MaxAccuracy: maxAccuracy}
}

func (c *Classifier) maxAccuracy() float64 {
	if c == nil || c.MaxAccuracy <= 0 {
		return DefaultMaxAccuracy
	}
	return c.MaxAccuracy
}

// Classify runs the rules in priority order and returns the first match.
func (c *Classifier) Classify(in Input) Result {
	res := Result{At: in.Now}
	u := in.Update

	switch {
	case u.Forwarded:
		res.Outcome = model.OutcomeForwarded
		return res
	case !u.Live:
		res.Outcome = model.OutcomeStaticLocation
		return res
	case u.Accuracy != nil && *u.Accuracy == 0:
		// Real receivers never report perfect accuracy; mock-location apps do.
		res.Outcome = model.OutcomeFakeGPS
		return res
	case u.Accuracy != nil && *u.Accuracy > c.maxAccuracy():
		res.Outcome = model.OutcomeLowAccuracy
		return res
	case in.Site == nil:
		res.Outcome = model.OutcomeNoSiteAssigned
		return res
	}

	res.Distance = geo.Distance(u.Point(), in.Site.Center())
	if res.Distance > in.Site.RadiusMeters {
		res.Outcome = model.OutcomeOutOfRadius
		res.Demote = in.SessionOpen
		return res
	}

	res.Outcome = model.OutcomeAccepted
	return res
}
