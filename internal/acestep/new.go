package acestep

import "fmt"

// New constructs the scheduler named by name for numSteps user-visible
// steps, using the package defaults for shift and omega. seed is only
// consumed by the PingPong solver.
func New(name SchedulerName, numSteps int, seed uint64) (Scheduler, error) {
	switch name {
	case SchedulerEuler:
		return NewEulerScheduler(numSteps, DefaultShift, DefaultOmega), nil
	case SchedulerHeun:
		return NewHeunScheduler(numSteps, DefaultShift, DefaultOmega), nil
	case SchedulerPingPong:
		return NewPingPongScheduler(numSteps, DefaultShift, seed), nil
	default:
		return nil, fmt.Errorf("acestep: unknown scheduler %q", name)
	}
}
