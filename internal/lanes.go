package internal

import "math/bits"

// Lanes is a bitset of priority channels. Multiple distinct-priority
// updates can be pending on one node at the same time, one bit per channel.
// Numerically lower bits are higher priority.
type Lanes uint32

// laneWidth is the number of usable lane bits. The constant expression
// below fails to compile if the width ever exceeds the uint32 backing.
const laneWidth = 31

const _ Lanes = 1<<laneWidth - 1

const (
	NoLanes Lanes = 0

	SyncLane            Lanes = 1 << 0
	InputContinuousLane Lanes = 1 << 1
	DefaultLane         Lanes = 1 << 2
	TransitionLane      Lanes = 1 << 3
	RetryLane           Lanes = 1 << 4

	IdleLane      Lanes = 1 << 29
	OffscreenLane Lanes = 1 << 30

	// nonIdleLanes masks every lane that should be preferred over idle work.
	nonIdleLanes Lanes = (1 << 29) - 1
)

func (l Lanes) Merge(other Lanes) Lanes {
	return l | other
}

func (l Lanes) Remove(other Lanes) Lanes {
	return l &^ other
}

func (l Lanes) Intersects(other Lanes) bool {
	return l&other != NoLanes
}

// IsSupersetOf reports whether every lane in sub is included in l. This is
// the apply-now vs. defer decision for a pending update against the lanes
// currently being rendered.
func (l Lanes) IsSupersetOf(sub Lanes) bool {
	return l&sub == sub
}

// Highest returns the numerically-lowest set lane, the highest-priority
// pending channel. Zero lanes yield zero.
func (l Lanes) Highest() Lanes {
	return l & -l
}

// Index returns the bit position of a single lane.
func (l Lanes) Index() int {
	return bits.TrailingZeros32(uint32(l))
}

// NextLanes picks the lanes to render next from a root's pending set.
// Non-idle lanes that aren't suspended win; otherwise non-idle lanes that
// were pinged; idle lanes follow the same two-step rule last. The tiered
// fallback keeps idle work from starving without letting it preempt.
func NextLanes(pending, suspended, pinged Lanes) Lanes {
	if pending == NoLanes {
		return NoLanes
	}

	if nonIdle := pending & nonIdleLanes; nonIdle != NoLanes {
		if unblocked := nonIdle.Remove(suspended); unblocked != NoLanes {
			return unblocked.Highest()
		}
		if pingedNonIdle := nonIdle & pinged; pingedNonIdle != NoLanes {
			return pingedNonIdle.Highest()
		}
		return NoLanes
	}

	if unblocked := pending.Remove(suspended); unblocked != NoLanes {
		return unblocked.Highest()
	}
	return (pending & pinged).Highest()
}

// LanePriority maps the highest lane of a set to a scheduler priority.
func LanePriority(lanes Lanes) Priority {
	switch lanes.Highest() {
	case SyncLane:
		return PriorityImmediate
	case InputContinuousLane:
		return PriorityUserBlocking
	case DefaultLane, TransitionLane:
		return PriorityNormal
	case RetryLane:
		return PriorityLow
	case IdleLane, OffscreenLane:
		return PriorityIdle
	default:
		return PriorityNormal
	}
}

// LaneForPriority derives the lane a new update should carry from the
// ambient execution priority.
func LaneForPriority(p Priority) Lanes {
	switch p {
	case PriorityImmediate:
		return SyncLane
	case PriorityUserBlocking:
		return InputContinuousLane
	case PriorityLow:
		return RetryLane
	case PriorityIdle:
		return IdleLane
	default:
		return DefaultLane
	}
}

// each returns the single-bit lanes of l, lowest first.
func (l Lanes) each(yield func(Lanes) bool) {
	for rest := l; rest != NoLanes; {
		lane := rest.Highest()
		rest = rest.Remove(lane)
		if !yield(lane) {
			return
		}
	}
}
