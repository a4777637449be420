package engine

import "fmt"

type GameState string

const (
	GamePending   GameState = "pending"
	GameStarted   GameState = "started"
	GameCollected GameState = "collected"
)

func (s GameState) Valid() bool {
	switch s {
	case GamePending, GameStarted, GameCollected:
		return true
	}
	return false
}

type LevelState string

const (
	LevelInactive   LevelState = "inactive"
	LevelActive     LevelState = "active"
	LevelCanCollect LevelState = "can-collect"
	LevelWon        LevelState = "won"
	LevelLost       LevelState = "lost"
	LevelPassed     LevelState = "passed"
	LevelCollected  LevelState = "collected"
)

func (s LevelState) Valid() bool {
	switch s {
	case LevelInactive, LevelActive, LevelCanCollect, LevelWon, LevelLost, LevelPassed, LevelCollected:
		return true
	}
	return false
}

// Current reports whether the level is the game's live level.
func (s LevelState) Current() bool {
	return s == LevelActive || s == LevelCanCollect
}

// Resolved reports whether the level is immutable history.
func (s LevelState) Resolved() bool {
	switch s {
	case LevelWon, LevelLost, LevelPassed, LevelCollected:
		return true
	}
	return false
}

type levelEvent int

const (
	evActivate levelEvent = iota
	evReveal
	evAnswerRight
	evAnswerRightLast
	evAnswerWrong
	evExpire
	evPass
	evCollect
)

func (e levelEvent) String() string {
	switch e {
	case evActivate:
		return "activate"
	case evReveal:
		return "reveal"
	case evAnswerRight:
		return "answer-right"
	case evAnswerRightLast:
		return "answer-right-last"
	case evAnswerWrong:
		return "answer-wrong"
	case evExpire:
		return "expire"
	case evPass:
		return "pass"
	case evCollect:
		return "collect"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// next is total over (state, event): every pair either yields a state or an error.
func (s LevelState) next(ev levelEvent) (LevelState, error) {
	switch s {
	case LevelInactive:
		if ev == evActivate {
			return LevelActive, nil
		}
	case LevelActive:
		switch ev {
		case evReveal:
			return LevelActive, nil
		case evAnswerRight:
			return LevelCanCollect, nil
		case evAnswerRightLast:
			return LevelWon, nil
		case evAnswerWrong, evExpire:
			return LevelLost, nil
		}
	case LevelCanCollect:
		switch ev {
		case evPass:
			return LevelPassed, nil
		case evCollect:
			return LevelCollected, nil
		case evExpire:
			return LevelLost, nil
		}
	case LevelWon, LevelLost, LevelPassed, LevelCollected:
	default:
		return s, fmt.Errorf("unknown level state %q", string(s))
	}
	return s, rejectErr(s, ev)
}

func rejectErr(s LevelState, ev levelEvent) error {
	switch ev {
	case evPass, evCollect:
		return fmt.Errorf("%w: cannot %s from %s", ErrLevelNotCollectable, ev, s)
	case evActivate:
		return fmt.Errorf("%w: cannot %s from %s", ErrLevelNotInactive, ev, s)
	}
	return fmt.Errorf("%w: cannot %s from %s", ErrLevelNotActive, ev, s)
}
