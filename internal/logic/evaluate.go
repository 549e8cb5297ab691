package logic

// Evaluate returns the LED level for a pair of status line levels:
// lit only when both lines are asserted.
func Evaluate(stat1, stat2 bool) bool {
	return stat1 && stat2
}

// BoolToState maps true to ON and false to OFF.
func BoolToState(b bool) State {
	if b {
		return StateOn
	}
	return StateOff
}
