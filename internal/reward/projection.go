package reward

// XPPerLevel is the width of one level under the local projection.
const XPPerLevel = 100

// ProjectLevel is the client-side level guess for an XP total. The server owns the
// real formula; this is only used for immediate feedback.
func ProjectLevel(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// ProjectXPToNext returns the XP still needed to leave level.
func ProjectXPToNext(level, xp int) int {
	if n := level*XPPerLevel - xp; n > 0 {
		return n
	}
	return 0
}
