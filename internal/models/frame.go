package models

import "encoding/json"

// liveFrame is the tagged-union envelope for live whiteboard edit frames.
type liveFrame struct {
	PathCompleted *PathStroke `json:"PathCompleted"`
}

// ParsePathCompleted attempts to decode frame as a PathCompleted edit. A
// frame that does not match the shape is not an error; it is simply not
// relevant to persistence and gets broadcast as-is.
func ParsePathCompleted(frame []byte) (PathStroke, bool) {
	var f liveFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return PathStroke{}, false
	}
	if f.PathCompleted == nil || !f.PathCompleted.Valid() {
		return PathStroke{}, false
	}
	return *f.PathCompleted, true
}

// PathCompletedFrame builds the wire form of a completed stroke.
func PathCompletedFrame(stroke PathStroke) ([]byte, error) {
	return json.Marshal(liveFrame{PathCompleted: &stroke})
}
