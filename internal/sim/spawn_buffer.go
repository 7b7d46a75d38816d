package sim

import "sync"

const (
	spawnBufferOccupancyMetricKey = "sim_spawn_buffer_occupancy"
	spawnBufferOverflowMetricKey  = "sim_spawn_buffer_overflow_total"
)

// SpawnBuffer stages spawn requests in a fixed-size ring. It is safe for
// concurrent producers and a single consumer, so callers may queue entities
// while a tick is in flight; the store drains the ring at the next tick
// boundary.
type SpawnBuffer struct {
	mu      sync.Mutex
	data    []SpawnRequest
	head    int
	tail    int
	count   int
	metrics telemetryMetrics
}

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// NewSpawnBuffer constructs a ring buffer with the provided capacity.
func NewSpawnBuffer(capacity int, metrics telemetryMetrics) *SpawnBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SpawnBuffer{
		data:    make([]SpawnRequest, capacity),
		metrics: metrics,
	}
}

// Capacity reports the maximum number of requests the buffer can hold.
func (b *SpawnBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Push stages a request, returning false if the buffer is full.
func (b *SpawnBuffer) Push(req SpawnRequest) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.data) {
		if b.metrics != nil {
			b.metrics.Add(spawnBufferOverflowMetricKey, 1)
		}
		return false
	}
	b.data[b.tail] = req
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	b.storeOccupancyLocked()
	return true
}

// Drain returns all staged requests in FIFO order and clears the buffer.
func (b *SpawnBuffer) Drain() []SpawnRequest {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	requests := make([]SpawnRequest, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % len(b.data)
		requests[i] = b.data[idx]
	}
	b.head = 0
	b.tail = 0
	b.count = 0
	b.storeOccupancyLocked()
	return requests
}

// Len reports the number of staged requests.
func (b *SpawnBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *SpawnBuffer) storeOccupancyLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(spawnBufferOccupancyMetricKey, uint64(b.count))
}
