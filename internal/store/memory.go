package store

import (
	"sort"
	"sync"

	"github.com/gepa-next/innerloop/internal/events"
)

type idemRecord struct {
	jobID string
	ts    float64
}

// MemoryStore keeps everything in process memory. Events live in a per-job
// ring bounded by bufferSize; older entries are discarded on append.
type MemoryStore struct {
	mu          sync.Mutex
	jobs        map[string]JobRecord
	eventLogs   map[string][]events.Envelope
	idempotency map[string]idemRecord
	bufferSize  int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(bufferSize int) *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[string]JobRecord),
		eventLogs:   make(map[string][]events.Envelope),
		idempotency: make(map[string]idemRecord),
		bufferSize:  bufferSize,
	}
}

func (m *MemoryStore) SaveJob(rec *JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[rec.ID] = *rec
	return nil
}

func (m *MemoryStore) GetJob(id string) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	snapshot := rec
	return &snapshot, nil
}

func (m *MemoryStore) ListJobs() ([]*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*JobRecord, 0, len(m.jobs))
	for _, rec := range m.jobs {
		snapshot := rec
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}

func (m *MemoryStore) DeleteJob(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	delete(m.eventLogs, id)
	return nil
}

func (m *MemoryStore) SaveEvent(jobID string, eventID int64, env events.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := append(m.eventLogs[jobID], env)
	if len(log) > m.bufferSize {
		log = log[len(log)-m.bufferSize:]
	}
	m.eventLogs[jobID] = log
	return nil
}

func (m *MemoryStore) EventsSince(jobID string, eventID int64) ([]events.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Envelope
	for _, env := range m.eventLogs[jobID] {
		if env.ID > eventID {
			out = append(out, env)
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveIdempotency(key, jobID string, ts float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotency[key] = idemRecord{jobID: jobID, ts: ts}
	return nil
}

func (m *MemoryStore) GetIdempotent(key string, now, ttl float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.idempotency[key]
	if ok && now-rec.ts < ttl {
		return rec.jobID, nil
	}
	return "", nil
}

func (m *MemoryStore) Close() error {
	return nil
}
