package memutils

import "math"

// Statistics sums up the live blocks of one or more arenas
type Statistics struct {
	// BlockCount is the number of live blocks
	BlockCount int
	// ReferenceCount is the sum of the reference counts of all live blocks
	ReferenceCount int
	// BlockBytes is the footprint of all live blocks, bookkeeping included
	BlockBytes int
	// PayloadBytes is the number of bytes callers asked for
	PayloadBytes int
}

func (s *Statistics) Clear() {
	s.BlockCount = 0
	s.ReferenceCount = 0
	s.BlockBytes = 0
	s.PayloadBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.ReferenceCount += other.ReferenceCount
	s.BlockBytes += other.BlockBytes
	s.PayloadBytes += other.PayloadBytes
}

// AddBlock records a single live block
func (s *Statistics) AddBlock(footprint, payload, refCount int) {
	s.BlockCount++
	s.ReferenceCount += refCount
	s.BlockBytes += footprint
	s.PayloadBytes += payload
}

type DetailedStatistics struct {
	Statistics
	SharedBlockCount int
	PayloadSizeMin   int
	PayloadSizeMax   int
	RefCountMax      int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.SharedBlockCount = 0
	s.PayloadSizeMin = math.MaxInt
	s.PayloadSizeMax = 0
	s.RefCountMax = 0
}

func (s *DetailedStatistics) AddBlock(footprint, payload, refCount int) {
	s.Statistics.AddBlock(footprint, payload, refCount)

	if refCount > 1 {
		s.SharedBlockCount++
	}

	if payload < s.PayloadSizeMin {
		s.PayloadSizeMin = payload
	}

	if payload > s.PayloadSizeMax {
		s.PayloadSizeMax = payload
	}

	if refCount > s.RefCountMax {
		s.RefCountMax = refCount
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.SharedBlockCount += other.SharedBlockCount

	if other.PayloadSizeMin < s.PayloadSizeMin {
		s.PayloadSizeMin = other.PayloadSizeMin
	}

	if other.PayloadSizeMax > s.PayloadSizeMax {
		s.PayloadSizeMax = other.PayloadSizeMax
	}

	if other.RefCountMax > s.RefCountMax {
		s.RefCountMax = other.RefCountMax
	}
}
