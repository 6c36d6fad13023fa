package kernel

// ProcState is the execution state of a process.
type ProcState int

const (
	Unused ProcState = iota
	Embryo
	Runnable
	Running
	Zombie
)

var procStates = [...]string{
	Unused:   "unused",
	Embryo:   "embryo",
	Runnable: "runble",
	Running:  "run",
	Zombie:   "zombie",
}

func (s ProcState) String() string {
	if s < 0 || int(s) >= len(procStates) {
		return "???"
	}
	return procStates[s]
}

// ThreadState is the execution state of a thread slot.
type ThreadState int

const (
	TUnused ThreadState = iota
	TEmbryo
	TRunnable
	TRunning
	TSleeping
	TZombie
)

var threadStates = [...]string{
	TUnused:   "unused",
	TEmbryo:   "embryo",
	TRunnable: "runble",
	TRunning:  "run",
	TSleeping: "sleep",
	TZombie:   "zombie",
}

func (s ThreadState) String() string {
	if s < 0 || int(s) >= len(threadStates) {
		return "???"
	}
	return threadStates[s]
}
