package viz

import (
	"fmt"
	"strings"

	"github.com/maxonary/ai-trend-clustering/internal/projection"
	"github.com/maxonary/ai-trend-clustering/internal/trend"
)

const dateLayout = "2006-01-02"

// TopicMapFigure builds the 3-D bubble scatter of a projection, coloured by
// the first semantic dimension.
func TopicMapFigure(p *projection.Projection) Figure {
	n := len(p.Points)
	tr := Trace{
		Type:      "scatter3d",
		Mode:      "markers+text",
		X:         make([]any, n),
		Y:         make([]any, n),
		Z:         make([]any, n),
		Text:      make([]string, n),
		HoverText: make([]string, n),
		HoverInfo: "text",
		Marker: &Marker{
			Size:       make([]float64, n),
			Color:      make([]float64, n),
			ColorScale: "Viridis",
			Opacity:    0.8,
			SizeMode:   "diameter",
		},
	}
	for i, pt := range p.Points {
		tr.X[i], tr.Y[i], tr.Z[i] = pt.X, pt.Y, pt.Z
		tr.Text[i] = pt.Label
		tr.HoverText[i] = pt.Hover
		tr.Marker.Size[i] = pt.Size
		tr.Marker.Color[i] = pt.X
	}

	axis := func(i int) map[string]any {
		return map[string]any{"title": map[string]any{"text": fmt.Sprintf("Semantic Dim %d", i)}}
	}
	return Figure{
		Data: []Trace{tr},
		Layout: map[string]any{
			"title": map[string]any{"text": fmt.Sprintf("Topic map (%d topics, neighbors=%d, min_dist=%g)", n, p.Neighbors, p.MinDist)},
			"scene": map[string]any{
				"xaxis": axis(1),
				"yaxis": axis(2),
				"zaxis": axis(3),
			},
			"margin":     map[string]any{"l": 0, "r": 0, "b": 0, "t": 40},
			"showlegend": false,
		},
	}
}

// TrendFigure builds one line per topic over the window start dates.
func TrendFigure(t *trend.Trend) Figure {
	x := make([]any, len(t.Windows))
	for i, w := range t.Windows {
		x[i] = w.Start.Format(dateLayout)
	}

	data := make([]Trace, 0, len(t.Topics))
	for _, s := range t.Topics {
		y := make([]any, len(s.Counts))
		hover := make([]string, len(s.Counts))
		for i, c := range s.Counts {
			y[i] = c
			hover[i] = fmt.Sprintf("Topic %d<br>%s<br>%d docs<br>%s", s.TopicID, x[i], c, strings.Join(s.Words[i], ", "))
		}
		data = append(data, Trace{
			Type:      "scatter",
			Mode:      "lines+markers",
			Name:      fmt.Sprintf("%d: %s", s.TopicID, s.Label),
			X:         x,
			Y:         y,
			HoverText: hover,
			HoverInfo: "text",
			Line:      &LineSpec{Width: 1.5, Shape: "linear"},
		})
	}

	return Figure{
		Data: data,
		Layout: map[string]any{
			"title":     map[string]any{"text": fmt.Sprintf("Topics over time (%d bins)", len(t.Windows))},
			"xaxis":     map[string]any{"title": map[string]any{"text": "Window start"}},
			"yaxis":     map[string]any{"title": map[string]any{"text": "Frequency"}},
			"hovermode": "closest",
		},
	}
}
