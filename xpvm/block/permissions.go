package block

// Permission checks take the id of the accessing processor. They return
// ExcNone on success.

// A block with no owner of record (loaded from the image, or argv) is
// shared. Otherwise only its owner may touch it unless it is VOLATILE and
// not currently held.
func (b *Block) checkAccess(proc uint64) Exception {
	g := b.governor()
	annots := g.Annots()
	word := g.owner.Load()
	owner, held := word&^heldBit, word&heldBit != 0
	switch {
	case owner == proc:
		return ExcNone
	case annots&Private != 0, held:
		return ExcIllegalOperation
	case owner != 0 && annots&Volatile == 0:
		return ExcIllegalOperation
	}
	return ExcNone
}

func (b *Block) CheckRead(proc uint64) Exception {
	return b.checkAccess(proc)
}

func (b *Block) CheckWrite(proc uint64) Exception {
	if b.HasAnnot(ReadOnly) {
		return ExcIllegalOperation
	}
	return b.checkAccess(proc)
}

func (b *Block) CheckExecute() Exception {
	if !b.HasAnnot(Instruction) {
		return ExcIllegalOperation
	}
	return ExcNone
}

// CheckAcquire reports why proc may not try to acquire b.
func (b *Block) CheckAcquire(proc uint64) Exception {
	g := b.governor()
	switch {
	case g.HasAnnot(Private) || b.HasAnnot(Private):
		return ExcIllegalOperation
	case g.owner.Load() == proc|heldBit:
		return ExcAlreadyOwner
	}
	return ExcNone
}

// CheckRelease reports why proc may not release b.
func (b *Block) CheckRelease(proc uint64) Exception {
	g := b.governor()
	if g.owner.Load() != proc|heldBit {
		return ExcNotOwner
	}
	return ExcNone
}

// Acquire tries to take exclusive ownership of b (or of its chain target)
// for proc. It never blocks: when another processor holds the block it
// returns false with ExcNone. The owner word changes in a single CAS, so the
// holder and the owner of record move together.
func (b *Block) Acquire(proc uint64) (bool, Exception) {
	if exc := b.CheckAcquire(proc); exc != ExcNone {
		return false, exc
	}
	g := b.governor()
	for {
		old := g.owner.Load()
		if old&heldBit != 0 {
			if old == proc|heldBit {
				return false, ExcAlreadyOwner
			}
			return false, ExcNone
		}
		if g.owner.CompareAndSwap(old, proc|heldBit) {
			g.setBits(Owned)
			return true, ExcNone
		}
	}
}

// Release gives up ownership taken by Acquire. proc stays the owner of
// record, so other processors still need VOLATILE or an acquire.
func (b *Block) Release(proc uint64) Exception {
	if exc := b.CheckRelease(proc); exc != ExcNone {
		return exc
	}
	g := b.governor()
	g.clearBits(Owned)
	if !g.owner.CompareAndSwap(proc|heldBit, proc) {
		return ExcNotOwner
	}
	return ExcNone
}
