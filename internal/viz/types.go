// Package viz renders topic maps and topic trends as Plotly figures and
// self-contained HTML pages.
package viz

import "encoding/json"

// Figure is a Plotly figure: traces plus layout.
type Figure struct {
	Data   []Trace        `json:"data"`
	Layout map[string]any `json:"layout"`
}

// Trace is one Plotly trace. Only the fields the figures use are modelled.
type Trace struct {
	Type      string    `json:"type"`
	Mode      string    `json:"mode,omitempty"`
	Name      string    `json:"name,omitempty"`
	X         []any     `json:"x"`
	Y         []any     `json:"y"`
	Z         []any     `json:"z,omitempty"`
	Text      []string  `json:"text,omitempty"`
	HoverText []string  `json:"hovertext,omitempty"`
	HoverInfo string    `json:"hoverinfo,omitempty"`
	Marker    *Marker   `json:"marker,omitempty"`
	Line      *LineSpec `json:"line,omitempty"`
}

// Marker styles scatter points.
type Marker struct {
	Size       []float64 `json:"size,omitempty"`
	Color      []float64 `json:"color,omitempty"`
	ColorScale string    `json:"colorscale,omitempty"`
	ShowScale  bool      `json:"showscale"`
	Opacity    float64   `json:"opacity,omitempty"`
	SizeMode   string    `json:"sizemode,omitempty"`
}

// LineSpec styles a line trace.
type LineSpec struct {
	Width float64 `json:"width,omitempty"`
	Shape string  `json:"shape,omitempty"`
}

// JSON encodes the figure for embedding in a page.
func (f Figure) JSON() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsEmpty returns true if the figure has nothing to plot.
func (f Figure) IsEmpty() bool {
	for _, t := range f.Data {
		if len(t.X) > 0 {
			return false
		}
	}
	return true
}
