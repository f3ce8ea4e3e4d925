package zxid

import (
	"sync"
)

/*
A ZXID orders every change made to the tree. It has two parts: the epoch and a counter, packed into
a 64-bit number with the epoch in the high order 32 bits and the counter in the low order 32 bits.
The epoch changes whenever a new leader takes over, and the counter is incremented for every
transaction within the epoch. Comparing two zxids as integers therefore orders them by epoch first.
See https://zookeeper.apache.org/doc/r3.4.13/zookeeperInternals.html#sc_guaranteesPropertiesDefinitions
*/
type ZXID int64

func NewZXID(epoch int32, counter int32) ZXID {
	highBits := int64(epoch) << 32
	// Mask the counter so a negative value does not spill into the epoch.
	lowBits := int64(uint32(counter))
	return ZXID(highBits | lowBits)
}

func (z ZXID) GetEpoch() int32 {
	return int32(z >> 32)
}

func (z ZXID) GetCounter() int32 {
	// Keep only the lower 32 bits.
	var maskLow32 ZXID = 0xFFFFFFFF
	return int32(z & maskLow32)
}

// Generator hands out increasing zxids within one epoch.
type Generator struct {
	mu   sync.Mutex
	last ZXID
}

func NewGenerator(epoch int32) *Generator {
	return &Generator{last: NewZXID(epoch, 0)}
}

// Next returns a zxid greater than every zxid returned before. When the counter
// runs out the generator moves on to the next epoch.
func (g *Generator) Next() ZXID {
	g.mu.Lock()
	defer g.mu.Unlock()

	epoch, counter := g.last.GetEpoch(), g.last.GetCounter()
	if uint32(counter) == 0xFFFFFFFF {
		g.last = NewZXID(epoch+1, 0)
	} else {
		g.last = NewZXID(epoch, counter+1)
	}
	return g.last
}

func (g *Generator) Last() ZXID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
