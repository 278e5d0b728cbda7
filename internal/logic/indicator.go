package logic

// Arbitrate picks the indicator mode for a set of spaces.
// Any reservation wins over availability, which wins over nothing.
func Arbitrate(spaces []Space) DisplayMode {
	available := false
	for _, s := range spaces {
		if s.Reserved {
			return ModeReservedPresent
		}
		if s.Available() {
			available = true
		}
	}
	if available {
		return ModeAvailablePresent
	}
	return ModeNone
}
