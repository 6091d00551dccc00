package viz

import (
	"bytes"
	"html/template"
)

var explorerTemplate = template.Must(template.New("explorer").Parse(explorerHTML))

// RunOption is one entry of the explorer's run selector.
type RunOption struct {
	ID    string
	Label string
}

// Slider describes a numeric control.
type Slider struct {
	Min, Max, Step, Value float64
}

// ExplorerData populates the explorer page.
type ExplorerData struct {
	Runs      []RunOption
	Selected  string
	Neighbors Slider
	MinDist   Slider
	Bins      Slider

	Category   string
	StartYear  int
	MaxResults int
}

// DefaultExplorerData returns the control ranges and pipeline defaults.
func DefaultExplorerData() ExplorerData {
	return ExplorerData{
		Neighbors:  Slider{Min: 2, Max: 100, Step: 1, Value: 15},
		MinDist:    Slider{Min: 0, Max: 1, Step: 0.01, Value: 0.1},
		Bins:       Slider{Min: 5, Max: 40, Step: 1, Value: 20},
		Category:   "cs.CL",
		StartYear:  2020,
		MaxResults: 500,
	}
}

// ExplorerHTML renders the interactive explorer page. The page calls the
// JSON API for projections, trends and pipeline runs.
func ExplorerHTML(data ExplorerData) (string, error) {
	view := struct {
		ExplorerData
		ScriptTag template.HTML
	}{data, template.HTML(PlotlyScript)}

	var buf bytes.Buffer
	if err := explorerTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const explorerHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>AI Research Trend Explorer</title>
  {{.ScriptTag}}
  <style>` + pageStyle + `
    header {
      padding: 12px 20px;
      background: white;
      border-bottom: 1px solid #ddd;
    }
    aside {
      float: left;
      width: 280px;
      padding: 16px;
    }
    main {
      margin-left: 300px;
      padding: 16px;
    }
    label {
      display: block;
      margin-top: 10px;
      font-size: 13px;
    }
    .tabs button.active {
      font-weight: bold;
    }
    .panel {
      display: none;
      background: white;
      min-height: 600px;
    }
    .panel.active {
      display: block;
    }
    .inline-error {
      color: #b00020;
      padding: 12px;
    }
    #status {
      font-size: 12px;
      color: #666;
      margin-top: 8px;
    }
  </style>
</head>
<body>
  <header><h1>AI Research Trend Explorer</h1></header>
  <aside>
    <h3>Pipeline</h3>
    <label>Category <input id="category" value="{{.Category}}"></label>
    <label>Start year <input id="start_year" type="number" value="{{.StartYear}}"></label>
    <label>Max results <input id="max_results" type="number" min="1" value="{{.MaxResults}}"></label>
    <button id="run">Run pipeline</button>
    <div id="status"></div>

    <h3>Run</h3>
    <select id="runs">
      {{- range .Runs}}
      <option value="{{.ID}}"{{if eq .ID $.Selected}} selected{{end}}>{{.Label}}</option>
      {{- else}}
      <option value="">No completed runs</option>
      {{- end}}
    </select>
  </aside>
  <main>
    <div class="tabs">
      <button data-tab="map" class="active">3-D Topic Map</button>
      <button data-tab="trend">Topic Trends</button>
      <button data-tab="info">How it works</button>
    </div>

    <section id="map" class="panel active">
      <label>Neighbors <span id="neighbors_val">{{.Neighbors.Value}}</span>
        <input id="neighbors" type="range" min="{{.Neighbors.Min}}" max="{{.Neighbors.Max}}" step="{{.Neighbors.Step}}" value="{{.Neighbors.Value}}"></label>
      <label>Min distance <span id="min_dist_val">{{.MinDist.Value}}</span>
        <input id="min_dist" type="range" min="{{.MinDist.Min}}" max="{{.MinDist.Max}}" step="{{.MinDist.Step}}" value="{{.MinDist.Value}}"></label>
      <div id="map_plot" style="height: 700px"></div>
    </section>

    <section id="trend" class="panel">
      <label>Number of time bins <span id="bins_val">{{.Bins.Value}}</span>
        <input id="bins" type="range" min="{{.Bins.Min}}" max="{{.Bins.Max}}" step="{{.Bins.Step}}" value="{{.Bins.Value}}"></label>
      <div id="trend_plot" style="height: 600px"></div>
    </section>

    <section id="info" class="panel">
      <h3>How it works</h3>
      <ol>
        <li>Fetch recent arXiv abstracts for a category, newest first, back to the start year.</li>
        <li>Embed every abstract with a sentence-embedding model served by Ollama.</li>
        <li>Cluster the embeddings into topics and rank each topic's terms with class-based TF-IDF.</li>
        <li>Project the topic centroids to 3-D with UMAP; bubble size follows the topic's document count.</li>
        <li>Count documents per topic over equal-width time windows to show trends.</li>
      </ol>
      <p>Documents the clustering could not place belong to the outlier topic -1, which is left out of both views.</p>
    </section>
  </main>

  <script>
    const $ = (id) => document.getElementById(id);

    function showError(id, msg) {
      Plotly.purge(id);
      $(id).innerHTML = '<div class="inline-error"></div>';
      $(id).firstChild.textContent = msg;
    }

    async function getJSON(url, opts) {
      const resp = await fetch(url, opts);
      const body = await resp.json();
      if (!resp.ok) throw new Error(body.error || resp.statusText);
      return body;
    }

    async function drawMap() {
      const run = $("runs").value;
      if (!run) return;
      const q = "neighbors=" + $("neighbors").value + "&min_dist=" + $("min_dist").value;
      try {
        const body = await getJSON("/api/runs/" + encodeURIComponent(run) + "/projection?" + q);
        $("map_plot").innerHTML = "";
        Plotly.react("map_plot", body.figure.data, body.figure.layout, {responsive: true});
      } catch (e) {
        showError("map_plot", "Could not compute projection: " + e.message);
      }
    }

    async function drawTrend() {
      const run = $("runs").value;
      if (!run) return;
      try {
        const body = await getJSON("/api/runs/" + encodeURIComponent(run) + "/trend?bins=" + $("bins").value);
        $("trend_plot").innerHTML = "";
        Plotly.react("trend_plot", body.figure.data, body.figure.layout, {responsive: true});
      } catch (e) {
        showError("trend_plot", "Could not generate trends: " + e.message);
      }
    }

    for (const id of ["neighbors", "min_dist", "bins"]) {
      $(id).addEventListener("input", () => { $(id + "_val").textContent = $(id).value; });
    }
    $("neighbors").addEventListener("change", drawMap);
    $("min_dist").addEventListener("change", drawMap);
    $("bins").addEventListener("change", drawTrend);
    $("runs").addEventListener("change", () => { drawMap(); drawTrend(); });

    document.querySelectorAll(".tabs button").forEach((b) => {
      b.addEventListener("click", () => {
        document.querySelectorAll(".tabs button, .panel").forEach((el) => el.classList.remove("active"));
        b.classList.add("active");
        $(b.dataset.tab).classList.add("active");
        window.dispatchEvent(new Event("resize"));
      });
    });

    $("run").addEventListener("click", async () => {
      $("run").disabled = true;
      $("status").textContent = "Running pipeline...";
      const poll = setInterval(async () => {
        try {
          const ev = await getJSON("/api/pipeline");
          if (ev.phase) $("status").textContent = ev.phase + " " + ev.state + (ev.detail ? " (" + ev.detail + ")" : "");
        } catch (e) {}
      }, 1000);
      try {
        const res = await getJSON("/api/runs", {
          method: "POST",
          headers: {"Content-Type": "application/json"},
          body: JSON.stringify({
            category: $("category").value,
            start_year: parseInt($("start_year").value, 10),
            max_results: parseInt($("max_results").value, 10),
          }),
        });
        const opt = document.createElement("option");
        opt.value = res.run.id;
        opt.textContent = res.run.id;
        $("runs").prepend(opt);
        $("runs").value = res.run.id;
        $("status").textContent = "Done: " + res.documents + " papers, " + res.topics + " topics";
        drawMap();
        drawTrend();
      } catch (e) {
        $("status").textContent = "Pipeline failed: " + e.message;
      } finally {
        clearInterval(poll);
        $("run").disabled = false;
      }
    });

    drawMap();
    drawTrend();
  </script>
</body>
</html>`
