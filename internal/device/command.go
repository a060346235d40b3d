package device

import (
	"fmt"
	"strconv"
)

const (
	fanOnSpeed  = 50
	fanStep     = 10
	fanMinSpeed = 0
	fanMaxSpeed = 100
)

// Named fan actions. Anything else must be an explicit integer speed.
const (
	FanActionOn       = "on"
	FanActionOff      = "off"
	FanActionIncrease = "increase"
	FanActionDecrease = "decrease"
)

// resolveFanAction maps an action verb or explicit speed to the target
// speed, given the fan's current speed. Increase and decrease clamp at
// the range bounds; explicit speeds outside 0..100 are invalid.
func resolveFanAction(action string, current int) (int, error) {
	switch action {
	case FanActionOn:
		return fanOnSpeed, nil
	case FanActionOff:
		return fanMinSpeed, nil
	case FanActionIncrease:
		next := current + fanStep
		if next > fanMaxSpeed {
			next = fanMaxSpeed
		}
		return next, nil
	case FanActionDecrease:
		next := current - fanStep
		if next < fanMinSpeed {
			next = fanMinSpeed
		}
		return next, nil
	}

	speed, err := strconv.Atoi(action)
	if err != nil || speed < fanMinSpeed || speed > fanMaxSpeed {
		return current, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return speed, nil
}

// validLEDStatus reports whether the status is one of the two values an
// LED feed accepts.
func validLEDStatus(status string) bool {
	return status == "0" || status == "1"
}
