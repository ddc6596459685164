package schemas

// ExposureState classifies how usable a control currently is. The values form
// a total order from "does not exist" to "fully accessible"; comparisons
// between states are ordinal, not equality-based.
type ExposureState int

const (
	// StateNotPresent means the control does not exist in the current render tree.
	StateNotPresent ExposureState = iota
	// StatePresent means the control exists but has no visible extent or is hidden.
	StatePresent
	// StateVisible means the control has on-screen extent and is not hidden,
	// but may be disabled or loading.
	StateVisible
	// StateExposed means the control is visible and unobstructed by overlays,
	// but may still be loading or busy.
	StateExposed
	// StateInteractable means the control can be invoked right now.
	StateInteractable
	// StateAccessible means the control is interactable and additionally
	// satisfies accessibility requirements.
	StateAccessible
)

var exposureStateNames = map[ExposureState]string{
	StateNotPresent:   "NOT_PRESENT",
	StatePresent:      "PRESENT",
	StateVisible:      "VISIBLE",
	StateExposed:      "EXPOSED",
	StateInteractable: "INTERACTABLE",
	StateAccessible:   "ACCESSIBLE",
}

func (s ExposureState) String() string {
	if name, ok := exposureStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// AtLeast reports whether s satisfies the given threshold. Exposure states
// are not monotonic over time (a control can regress from INTERACTABLE to
// VISIBLE when it becomes disabled), so callers must re-check after regressions.
func (s ExposureState) AtLeast(threshold ExposureState) bool {
	return s >= threshold
}
