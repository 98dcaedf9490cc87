package failover

// Decision is what the confidence state demands of the alias record.
type Decision int

const (
	Hold Decision = iota
	SwitchToPrimary
	SwitchToSecondary
)

func (d Decision) String() string {
	switch d {
	case SwitchToPrimary:
		return "switch-to-primary"
	case SwitchToSecondary:
		return "switch-to-secondary"
	default:
		return "hold"
	}
}

// Tracker holds the hysteresis state for uplink selection. Evidence for the
// primary uplink raises the counter one point per tick, any evidence against
// it drops the counter straight to zero, and the alias only moves at the
// bounds. The active flag advances solely through Confirm, so an
// unconfirmed record update reproduces the same decision next tick.
type Tracker struct {
	confidence int
	threshold  int
	active     bool
}

// NewTracker seeds confidence at half the threshold so a restarted process
// neither trusts nor distrusts the primary uplink, and assumes the
// secondary target is the one currently published.
func NewTracker(threshold int) *Tracker {
	return &Tracker{threshold: threshold, confidence: threshold / 2}
}

func (t *Tracker) Observe(side Side) {
	switch side {
	case Primary:
		if t.confidence < t.threshold {
			t.confidence++
		}
	case Secondary:
		t.confidence = 0
	case Neither:
		// No evidence either way.
	}
}

// ObserveFailure records a failed resolution attempt, which counts as
// evidence against the primary uplink.
func (t *Tracker) ObserveFailure() {
	t.confidence = 0
}

func (t *Tracker) Decision() Decision {
	if t.confidence == t.threshold && !t.active {
		return SwitchToPrimary
	}
	if t.confidence == 0 && t.active {
		return SwitchToSecondary
	}
	return Hold
}

// Confirm commits a decision once the record update succeeded.
func (t *Tracker) Confirm(d Decision) {
	switch d {
	case SwitchToPrimary:
		t.active = true
	case SwitchToSecondary:
		t.active = false
	}
}

func (t *Tracker) Confidence() int     { return t.confidence }
func (t *Tracker) Threshold() int      { return t.threshold }
func (t *Tracker) PrimaryActive() bool { return t.active }
