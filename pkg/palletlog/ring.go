package palletlog

import (
	"container/ring"
	"strconv"
	"sync"
	"time"
)

// Ring retains the last `size` formatted log lines in memory, stamped with
// a timestamp, for operator tooling to dump without re-deriving from
// wherever stdout ended up.
type Ring struct {
	size int

	mu sync.Mutex
	r  *ring.Ring
}

// NewRing allocates a ring buffer holding up to size lines.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{r: ring.New(size), size: size}
}

// Write stores a single already-formatted line, prefixed with the current
// time.
func (l *Ring) Write(line string) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var buf []byte
	hour, min, sec := now.Clock()
	buf = strconv.AppendInt(buf, int64(hour), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(min), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(sec), 10)
	buf = append(buf, ' ')
	buf = append(buf, line...)

	l.r = l.r.Next()
	l.r.Value = string(buf)
}

// Dump returns the retained lines, oldest first.
func (l *Ring) Dump() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make([]string, 0, l.size)
	l.r.Next().Do(func(v interface{}) {
		if v == nil {
			return
		}
		res = append(res, v.(string))
	})
	return res
}
