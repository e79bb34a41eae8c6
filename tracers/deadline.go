package tracers

import (
	"time"

	"github.com/openrollup/multivm/engine/vmlatest"
	"github.com/openrollup/multivm/engine/vmvirtual"
)

// DeadlineTracer stops execution once a wall-clock deadline passes. The
// interpreter finishes the current cycle and halts with a tracer-requested
// stop.
type DeadlineTracer struct {
	deadline time.Time
	now      func() time.Time
}

// NewDeadlineTracer builds a tracer that requests a stop after the given
// deadline.
func NewDeadlineTracer(deadline time.Time) *DeadlineTracer {
	return &DeadlineTracer{deadline: deadline, now: time.Now}
}

func (t *DeadlineTracer) expired() bool {
	return t.now().After(t.deadline)
}

func (t *DeadlineTracer) VirtualBlocks() vmvirtual.Tracer { return &deadlineVirtual{tracer: t} }
func (t *DeadlineTracer) Latest() vmlatest.Tracer         { return &deadlineLatest{tracer: t} }

type deadlineVirtual struct {
	vmvirtual.BaseTracer
	tracer *DeadlineTracer
}

func (d *deadlineVirtual) ShouldStopExecution() bool {
	return d.tracer.expired()
}

type deadlineLatest struct {
	vmlatest.BaseTracer
	tracer *DeadlineTracer
}

func (d *deadlineLatest) FinishCycle(*vmlatest.Engine, *vmlatest.BootloaderState) vmlatest.TracerExecutionStatus {
	if d.tracer.expired() {
		return vmlatest.TracerStop
	}
	return vmlatest.TracerContinue
}
