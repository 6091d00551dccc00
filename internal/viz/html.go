package viz

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/maxonary/ai-trend-clustering/internal/projection"
	"github.com/maxonary/ai-trend-clustering/internal/trend"
)

// PlotlyScript loads Plotly from the CDN.
const PlotlyScript = `<script src="https://cdn.plot.ly/plotly-2.35.2.min.js" charset="utf-8"></script>`

// Templates are parsed at init time to fail fast on template errors.
var (
	figureTemplate  *template.Template
	messageTemplate *template.Template
)

func init() {
	figureTemplate = template.Must(template.New("figure").Parse(figureHTML))
	messageTemplate = template.Must(template.New("message").Parse(messageHTML))
}

// HTMLOptions configures HTML generation.
type HTMLOptions struct {
	Title  string
	Height int // plot height in pixels
}

// DefaultOptions returns default HTML generation options.
func DefaultOptions() HTMLOptions {
	return HTMLOptions{Height: 750}
}

type figureData struct {
	Title      string
	ScriptTag  template.HTML
	FigureJSON template.JS
	Height     int
}

type messageData struct {
	Title   string
	Heading string
	Message string
	Kind    string
}

// TopicMapHTML renders a projection as a standalone page.
func TopicMapHTML(p *projection.Projection, opts HTMLOptions) (string, error) {
	if p == nil {
		return "", fmt.Errorf("projection cannot be nil")
	}
	if len(p.Points) == 0 {
		return emptyHTML("Topic map", "No topics to display", "Every document was assigned to the outlier topic."), nil
	}
	if opts.Title == "" {
		opts.Title = "3-D Topic Map"
	}
	return renderFigure(TopicMapFigure(p), opts)
}

// TrendHTML renders a trend as a standalone page.
func TrendHTML(t *trend.Trend, opts HTMLOptions) (string, error) {
	if t == nil {
		return "", fmt.Errorf("trend cannot be nil")
	}
	if len(t.Topics) == 0 {
		return emptyHTML("Topic trends", "No topics to display", "The model has no topics besides outliers."), nil
	}
	if opts.Title == "" {
		opts.Title = "Topic Trends Over Time"
	}
	return renderFigure(TrendFigure(t), opts)
}

// ErrorHTML renders err as an inline message page.
func ErrorHTML(title string, err error) string {
	var buf bytes.Buffer
	data := messageData{Title: title, Heading: title, Message: err.Error(), Kind: "error"}
	if execErr := messageTemplate.Execute(&buf, data); execErr != nil {
		return "<p>" + template.HTMLEscapeString(err.Error()) + "</p>"
	}
	return buf.String()
}

func renderFigure(fig Figure, opts HTMLOptions) (string, error) {
	figJSON, err := fig.JSON()
	if err != nil {
		return "", err
	}
	if opts.Height <= 0 {
		opts.Height = DefaultOptions().Height
	}

	data := figureData{
		Title:      opts.Title,
		ScriptTag:  template.HTML(PlotlyScript),
		FigureJSON: template.JS(figJSON),
		Height:     opts.Height,
	}

	var buf bytes.Buffer
	if err := figureTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func emptyHTML(title, heading, message string) string {
	var buf bytes.Buffer
	data := messageData{Title: title, Heading: heading, Message: message, Kind: "empty"}
	if err := messageTemplate.Execute(&buf, data); err != nil {
		return "<p>" + template.HTMLEscapeString(message) + "</p>"
	}
	return buf.String()
}

const pageStyle = `
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      margin: 0;
      background: #f5f5f5;
    }`

const figureHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  {{.ScriptTag}}
  <style>` + pageStyle + `
    #plot {
      width: 100%;
      background: white;
    }
  </style>
</head>
<body>
  <div id="plot" style="height: {{.Height}}px"></div>
  <script>
    const figure = {{.FigureJSON}};
    figure.layout.title = figure.layout.title || {text: {{.Title}}};
    Plotly.newPlot("plot", figure.data, figure.layout, {responsive: true});
  </script>
</body>
</html>`

const messageHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>` + pageStyle + `
    .message {
      display: flex;
      flex-direction: column;
      justify-content: center;
      align-items: center;
      height: 100vh;
      color: #666;
    }
    .message h2 {
      margin-bottom: 0.5em;
      color: #333;
    }
    .message.error h2 {
      color: #b00020;
    }
  </style>
</head>
<body>
  <div class="message {{.Kind}}">
    <h2>{{.Heading}}</h2>
    <p>{{.Message}}</p>
  </div>
</body>
</html>`
