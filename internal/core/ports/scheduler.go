package ports

type SchedulerService interface {
	Start()
	Stop()
	// AfterNow reports whether the given unix timestamp is still in the
	// future from the scheduler's point of view.
	AfterNow(expiry int64) bool
	// ScheduleTaskOnce runs task once when the clock reaches at.
	ScheduleTaskOnce(at int64, task func()) error
}
