package uuid47

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"
	"time"
)

// DefaultGenerator is used by New().
var DefaultGenerator = NewGenerator()

// New generates a monotonic sortable (v7) ID using the DefaultGenerator.
func New() ID {
	return DefaultGenerator.Generate()
}

// Generator produces strictly increasing sortable IDs. Within one
// millisecond a 32-bit counter occupies the low random bits beneath a
// fresh 42-bit random prefix, so successive outputs always compare
// higher byte-wise. A Generator is safe for concurrent use; callers
// needing independent sequences should hold one instance each.
type Generator struct {
	mu      sync.Mutex
	lastMS  uint64
	counter uint32
	hi      uint64 // 42 random bits above the counter

	nowMS   func() uint64
	entropy io.Reader
	sleep   func()
}

// NewGenerator returns a Generator on the wall clock and crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		nowMS:   func() uint64 { return uint64(time.Now().UnixMilli()) },
		entropy: rand.Reader,
		sleep:   func() { time.Sleep(100 * time.Microsecond) },
	}
}

// Generate returns the next monotonic sortable ID. A clock reading
// earlier than the previous call reuses the previous millisecond rather
// than regressing the timestamp; counter exhaustion within one
// millisecond stalls in short sleeps until the clock advances.
func (g *Generator) Generate() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowMS()
	if now > g.lastMS {
		g.roll(now)
	} else {
		// Same millisecond, or the clock went backward.
		g.counter++
		if g.counter == 0 {
			for now = g.nowMS(); now <= g.lastMS; now = g.nowMS() {
				g.sleep()
			}
			g.roll(now)
		}
	}

	var suffix [10]byte
	suffix[0] = byte(g.hi>>38) & 0x0F
	suffix[1] = byte(g.hi >> 30)
	suffix[2] = byte(g.hi>>24) & 0x3F
	suffix[3] = byte(g.hi >> 16)
	suffix[4] = byte(g.hi >> 8)
	suffix[5] = byte(g.hi)
	binary.BigEndian.PutUint32(suffix[6:], g.counter)

	return buildSortable(g.lastMS, suffix)
}

// roll starts a new millisecond: counter to zero, fresh 42-bit prefix.
func (g *Generator) roll(now uint64) {
	g.lastMS = now
	g.counter = 0
	var b [8]byte
	mustRead(g.entropy, b[:])
	g.hi = binary.BigEndian.Uint64(b[:]) & (1<<42 - 1)
}

// NewRandom returns a sortable ID with all 74 random bits drawn fresh.
// Unlike Generate it carries no ordering guarantee within a millisecond.
func NewRandom() ID {
	return NewAt(time.Now())
}

// NewAt returns a random sortable ID carrying the given wall-clock time.
func NewAt(t time.Time) ID {
	var suffix [10]byte
	mustRead(rand.Reader, suffix[:])
	return buildSortable(uint64(t.UnixMilli()), suffix)
}

func mustRead(r io.Reader, b []byte) {
	if _, err := io.ReadFull(r, b); err != nil {
		panic("uuid47: entropy source failed: " + err.Error())
	}
}
