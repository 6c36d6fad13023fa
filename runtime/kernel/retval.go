package kernel

// retStore holds thread return values; accessed with the table lock held.
type retStore interface {
	store(pid, slot int, value uint32)
	load(pid, slot int) uint32
	clear(pid int)
}

// sharedRet is indexed by slot alone, so processes using the same slot
// overwrite each other's values.
type sharedRet [NTHRD]uint32

func (r *sharedRet) store(_, slot int, value uint32) { r[slot] = value }

func (r *sharedRet) load(_, slot int) uint32 { return r[slot] }

func (r *sharedRet) clear(int) {}

type retKey struct {
	pid  int
	slot int
}

type isolatedRet map[retKey]uint32

func (r isolatedRet) store(pid, slot int, value uint32) { r[retKey{pid, slot}] = value }

func (r isolatedRet) load(pid, slot int) uint32 { return r[retKey{pid, slot}] }

func (r isolatedRet) clear(pid int) {
	for key := range r {
		if key.pid == pid {
			delete(r, key)
		}
	}
}
