// Package snowflake генерирует 64-битные идентификаторы без обращения к внешним сервисам.
//
// Раскладка: 41 бит времени (мс от Epoch), 5 бит датацентра, 5 бит машины, 12 бит счётчика.
package snowflake

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Epoch 2024-01-01T00:00:00Z в миллисекундах.
const Epoch int64 = 1704067200000

const (
	datacenterBits = 5
	machineBits    = 5
	sequenceBits   = 12

	MaxDatacenterID = -1 ^ (-1 << datacenterBits)
	MaxMachineID    = -1 ^ (-1 << machineBits)
	maxSequence     = -1 ^ (-1 << sequenceBits)

	machineShift    = sequenceBits
	datacenterShift = sequenceBits + machineBits
	timestampShift  = sequenceBits + machineBits + datacenterBits
)

var (
	ErrClockMovedBackwards = errors.New("clock moved backwards")
	ErrInvalidNodeID       = errors.New("invalid node id")
)

type Generator struct {
	mu            sync.Mutex
	datacenterID  int64
	machineID     int64
	sequence      int64
	lastTimestamp int64
	nowMillis     func() int64
}

type Option func(*Generator)

// WithClock подменяет источник времени (мс). Используется в тестах.
func WithClock(nowMillis func() int64) Option {
	return func(g *Generator) { g.nowMillis = nowMillis }
}

func New(datacenterID, machineID int64, opts ...Option) (*Generator, error) {
	if datacenterID < 0 || datacenterID > MaxDatacenterID {
		return nil, errors.Wrapf(ErrInvalidNodeID, "datacenter id must be between 0 and %d", MaxDatacenterID)
	}
	if machineID < 0 || machineID > MaxMachineID {
		return nil, errors.Wrapf(ErrInvalidNodeID, "machine id must be between 0 and %d", MaxMachineID)
	}

	g := &Generator{
		datacenterID:  datacenterID,
		machineID:     machineID,
		lastTimestamp: -1,
		nowMillis:     func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.nowMillis()
	if ts < g.lastTimestamp {
		return 0, errors.Wrap(ErrClockMovedBackwards,
			fmt.Sprintf("refusing to generate id for %d ms", g.lastTimestamp-ts))
	}

	if ts == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// счётчик исчерпан, ждём следующую миллисекунду
			ts = g.waitNextMillis(g.lastTimestamp)
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = ts

	return (ts-Epoch)<<timestampShift |
		g.datacenterID<<datacenterShift |
		g.machineID<<machineShift |
		g.sequence, nil
}

func (g *Generator) waitNextMillis(last int64) int64 {
	ts := g.nowMillis()
	for ts <= last {
		ts = g.nowMillis()
	}
	return ts
}

// Parts раскладывает id обратно на составляющие.
func Parts(id int64) (timestampMillis, datacenterID, machineID, sequence int64) {
	timestampMillis = (id >> timestampShift) + Epoch
	datacenterID = (id >> datacenterShift) & MaxDatacenterID
	machineID = (id >> machineShift) & MaxMachineID
	sequence = id & maxSequence
	return
}
