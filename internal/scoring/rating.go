package scoring

// Rating lexicon. The order of checks is the tie-break: first match wins.
const (
	RatingEpic    = "Epic"
	RatingFiring  = "Firing"
	RatingPumping = "Pumping"
	RatingGood    = "Good"
	RatingFun     = "Fun"
	RatingFair    = "Fair"
	RatingSmall   = "Small"
	RatingNoSurf  = "No surf"
	RatingMessy   = "Messy"
	RatingMush    = "Mush"
	RatingSlop    = "Slop"
	RatingMeh     = "Meh"
	RatingUnknown = "Unknown"
)

// favorableRating maps wave height (feet) and period (seconds) to a rating
// when the wind blows from the spot's preferred quarter.
func favorableRating(heightFt, period float64) string {
	switch {
	case heightFt < 1:
		return RatingNoSurf
	case heightFt < 3:
		return RatingSmall
	case heightFt >= 7 && period > 19:
		return RatingEpic
	case heightFt >= 7 && period > 15:
		return RatingFiring
	case heightFt > 5 && period > 13:
		return RatingPumping
	case heightFt >= 3 && period > 11:
		return RatingGood
	case heightFt >= 3 && period >= 9:
		return RatingFun
	case heightFt >= 3 && period < 9:
		return RatingFair
	default:
		return RatingSmall
	}
}

// unfavorableRating is the lexicon for onshore or otherwise unfavorable wind.
func unfavorableRating(heightFt, period float64) string {
	switch {
	case heightFt < 3 && period < 8:
		return RatingSlop
	case heightFt >= 3 && heightFt <= 5 && period >= 8 && period <= 12:
		return RatingMush
	case heightFt >= 3 && period > 12:
		return RatingMessy
	default:
		return RatingMeh
	}
}
