package fitness

import "time"

// DayWindow returns [local midnight, now) in the given reference zone. The
// window anchor moves forward each calendar day, which is what makes the
// stored daily total reset implicitly without an explicit reset operation.
func DayWindow(now time.Time, zone *time.Location) (start, end time.Time) {
	local := now.In(zone)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	return start, now
}
