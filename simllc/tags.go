package simllc

// A block is the information associated with one cache line of a slice.
type block struct {
	Tag     uint64
	WayID   int
	SetID   int
	IsValid bool
}

// A set is a list of blocks where a line can be stored. LRUQueue holds way
// ids from least to most recently used.
type set struct {
	Blocks   []block
	LRUQueue []int
}

// A tagArray is the directory of one slice.
type tagArray struct {
	NumSets int
	NumWays int
	Sets    []set
}

func newTagArray(numSets, numWays int) *tagArray {
	t := &tagArray{
		NumSets: numSets,
		NumWays: numWays,
	}

	t.reset()

	return t
}

// lookup finds the valid block holding tag in the set.
func (t *tagArray) lookup(setID int, tag uint64) (block, bool) {
	for _, b := range t.Sets[setID].Blocks {
		if b.IsValid && b.Tag == tag {
			return b, true
		}
	}

	return block{}, false
}

// update stores the block information.
func (t *tagArray) update(b block) {
	t.Sets[b.SetID].Blocks[b.WayID] = b
}

// visit moves the block to the most recently used end of the LRU queue.
func (t *tagArray) visit(b block) {
	s := &t.Sets[b.SetID]

	i := 0
	for _, way := range s.LRUQueue {
		if way != b.WayID {
			s.LRUQueue[i] = way
			i++
		}
	}

	s.LRUQueue[i] = b.WayID
}

// findVictim returns an invalid block if there is one, otherwise the least
// recently used block.
func (t *tagArray) findVictim(setID int) block {
	s := &t.Sets[setID]

	for _, way := range s.LRUQueue {
		if !s.Blocks[way].IsValid {
			return s.Blocks[way]
		}
	}

	return s.Blocks[s.LRUQueue[0]]
}

// invalidate drops the block holding tag, if any.
func (t *tagArray) invalidate(setID int, tag uint64) bool {
	b, found := t.lookup(setID, tag)
	if !found {
		return false
	}

	b.IsValid = false
	t.update(b)

	return true
}

// reset marks all the blocks invalid.
func (t *tagArray) reset() {
	t.Sets = make([]set, t.NumSets)
	for i := 0; i < t.NumSets; i++ {
		for j := 0; j < t.NumWays; j++ {
			t.Sets[i].Blocks = append(t.Sets[i].Blocks, block{
				SetID: i,
				WayID: j,
			})
			t.Sets[i].LRUQueue = append(t.Sets[i].LRUQueue, j)
		}
	}
}
