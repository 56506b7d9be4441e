package domain

// PageStatus is a fixed-shape snapshot of the punch page. The availability
// flags drive both the short-circuit check before an attempt and the
// state-diff fallback during verification, so the shape is deliberately
// closed rather than an open map.
type PageStatus struct {
	PageLoaded     bool
	GPSLoaded      bool
	CurrentDate    string
	CurrentTime    string
	Location       string
	EnterAvailable bool
	ExitAvailable  bool
}

// Available reports whether the given action can currently be performed.
func (s PageStatus) Available(a Action) bool {
	switch a {
	case ActionEnter:
		return s.EnterAvailable
	case ActionExit:
		return s.ExitAvailable
	default:
		return s.EnterAvailable || s.ExitAvailable
	}
}
