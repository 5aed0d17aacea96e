package game

// speedPoints maps the seconds left on the answer window to awarded points.
// Faster answers earn more; a buzzer-beater still earns something.
func speedPoints(timeRemaining int) int {
	switch {
	case timeRemaining >= 7:
		return 10
	case timeRemaining >= 4:
		return 7
	case timeRemaining >= 1:
		return 4
	default:
		return 2
	}
}
