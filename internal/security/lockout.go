package security

import "time"

// LockoutThreshold is the number of consecutive failures that first locks an account.
const LockoutThreshold = 5

// LockoutDuration maps a consecutive failure count to the lock it earns.
// Below the threshold there is no lock.
func LockoutDuration(failures int) time.Duration {
	switch {
	case failures < LockoutThreshold:
		return 0
	case failures == 5:
		return time.Minute
	case failures == 6:
		return 5 * time.Minute
	case failures == 7:
		return 15 * time.Minute
	default:
		return time.Hour
	}
}
