package logic

// Decision is the outcome of one controller evaluation.
type Decision struct {
	// Target is the appearance the fixture should show. Equal to the
	// current appearance when Source is SourceHold.
	Target Appearance
	Source Source
	// Match is set when Source is SourceSchedule.
	Match *Match
	// Write is true when Target's displayed color differs from what is
	// currently shown, or nothing has been applied yet.
	Write bool
}

// LightController turns a schedule result (or loss of trusted time) into at
// most one output write.
type LightController struct {
	Fallback Appearance
	Gap      GapPolicy
}

// NewLightController creates a controller with the given fallback appearance
// and gap policy. An empty policy means GapHold.
func NewLightController(fallback Appearance, gap GapPolicy) *LightController {
	if gap == "" {
		gap = GapHold
	}
	return &LightController{Fallback: fallback, Gap: gap}
}

// Decide picks the target appearance for this tick. It does not modify st;
// call Commit once the write has been performed.
func (c *LightController) Decide(st *ControllerState, trusted bool, m Match, ok bool) Decision {
	var d Decision
	switch {
	case !trusted:
		d.Target = c.Fallback
		d.Source = SourceFallback
	case ok:
		d.Target = m.Appearance
		d.Source = SourceSchedule
		d.Match = &m
	case c.Gap == GapFallback:
		d.Target = c.Fallback
		d.Source = SourceFallback
	default:
		// No rule fired: leave the display as it is.
		d.Target = st.Current
		d.Source = SourceHold
		return d
	}

	// Compare what is shown, not the (color, ratio) pair. The first target
	// is always written: network lights keep their state across restarts.
	d.Write = !st.Applied || d.Target.Dimmed() != st.Current.Dimmed()
	return d
}

// Commit records that target is now displayed.
func (c *LightController) Commit(st *ControllerState, target Appearance) {
	st.Current = target
	st.Applied = true
}
