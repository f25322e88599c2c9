package bridge

import "sync"

// ChangeFilter drops device updates that are not newer than the last one
// forwarded for the same device.
type ChangeFilter struct {
	mu         sync.Mutex
	watermarks map[string]uint64
}

func NewChangeFilter() *ChangeFilter {
	return &ChangeFilter{watermarks: map[string]uint64{}}
}

// ShouldForward reports whether an update stamped updateTime is newer than the
// watermark of deviceID (0 for unseen devices) and, if so, advances the
// watermark. Equal timestamps count as duplicates.
func (f *ChangeFilter) ShouldForward(deviceID string, updateTime uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if updateTime <= f.watermarks[deviceID] {
		return false
	}
	f.watermarks[deviceID] = updateTime
	return true
}

// Watermark returns the last forwarded update time of deviceID.
func (f *ChangeFilter) Watermark(deviceID string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watermarks[deviceID]
}

// Len returns the number of tracked devices.
func (f *ChangeFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watermarks)
}
