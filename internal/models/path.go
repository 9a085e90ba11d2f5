package models

// Point is one 2D coordinate, serialized as [x, y].
type Point [2]float64

// PathStroke is a single freehand whiteboard stroke. Color and StrokeWidth
// are rendering hints and opaque to the backend.
type PathStroke struct {
	ID          string  `json:"id"`
	Points      []Point `json:"points"`
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
}

// Valid reports whether the stroke is complete enough to persist.
func (p PathStroke) Valid() bool {
	return p.ID != "" && len(p.Points) > 0
}
