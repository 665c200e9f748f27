package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// IDMap assigns monotonically increasing vector ids to document paths and
// tracks tombstoned ids. Ids of deleted or replaced documents are never
// reused; their vectors stay in the index masked by the tombstone set until
// the next rebuild compacts them away.
type IDMap struct {
	mu         sync.RWMutex
	nextID     int64
	pathToID   map[string]int64
	idToPath   map[int64]string
	tombstones *roaring64.Bitmap
}

// NewIDMap creates an empty id map.
func NewIDMap() *IDMap {
	return &IDMap{
		nextID:     1,
		pathToID:   make(map[string]int64),
		idToPath:   make(map[int64]string),
		tombstones: roaring64.New(),
	}
}

// Assign allocates a fresh id for path. If path already had a live id, that
// id is tombstoned and returned as old with replaced=true.
func (m *IDMap) Assign(path string) (id int64, old int64, replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.pathToID[path]; ok {
		m.tombstones.Add(uint64(prev))
		delete(m.idToPath, prev)
		old, replaced = prev, true
	}
	id = m.nextID
	m.nextID++
	m.pathToID[path] = id
	m.idToPath[id] = path
	return id, old, replaced
}

// Tombstone marks the live id for path as deleted. Returns the tombstoned id,
// or ok=false when path has no live id.
func (m *IDMap) Tombstone(path string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.pathToID[path]
	if !ok {
		return 0, false
	}
	m.tombstones.Add(uint64(id))
	delete(m.pathToID, path)
	delete(m.idToPath, id)
	return id, true
}

// IsTombstoned reports whether id has been tombstoned.
func (m *IDMap) IsTombstoned(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tombstones.Contains(uint64(id))
}

// PathFor returns the path for a live id.
func (m *IDMap) PathFor(id int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path, ok := m.idToPath[id]
	return path, ok
}

// IDFor returns the live id for path.
func (m *IDMap) IDFor(path string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pathToID[path]
	return id, ok
}

// LiveCount returns the number of live id assignments.
func (m *IDMap) LiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pathToID)
}

// TombstoneCount returns the number of tombstoned ids.
func (m *IDMap) TombstoneCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tombstones.GetCardinality()
}

// Reset clears all assignments and tombstones. The id counter restarts,
// which is safe only together with a vector index reset.
func (m *IDMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = 1
	m.pathToID = make(map[string]int64)
	m.idToPath = make(map[int64]string)
	m.tombstones = roaring64.New()
}

type idMapState struct {
	NextID     int64            `json:"next_id"`
	Paths      map[string]int64 `json:"paths"`
	Tombstones []byte           `json:"tombstones"`
}

// Save persists the map as JSON via a temp file renamed over the target.
func (m *IDMap) Save(path string) error {
	m.mu.RLock()
	state := idMapState{
		NextID: m.nextID,
		Paths:  make(map[string]int64, len(m.pathToID)),
	}
	for p, id := range m.pathToID {
		state.Paths[p] = id
	}
	tomb, err := m.tombstones.MarshalBinary()
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal tombstones: %w", err)
	}
	state.Tombstones = tomb

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal id map: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create id map dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write id map: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename id map: %w", err)
	}
	return nil
}

// Load replaces in-memory contents from path. A missing file is not an error.
func (m *IDMap) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read id map: %w", err)
	}
	var state idMapState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse id map: %w", err)
	}
	tombstones := roaring64.New()
	if len(state.Tombstones) > 0 {
		if err := tombstones.UnmarshalBinary(state.Tombstones); err != nil {
			return fmt.Errorf("parse tombstones: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = state.NextID
	if m.nextID < 1 {
		m.nextID = 1
	}
	m.pathToID = state.Paths
	if m.pathToID == nil {
		m.pathToID = make(map[string]int64)
	}
	m.idToPath = make(map[int64]string, len(m.pathToID))
	for p, id := range m.pathToID {
		m.idToPath[id] = p
	}
	m.tombstones = tombstones
	return nil
}
