package report

// PageTemplate is the HTML template of the evaluation report. It is
// self-contained: styles inline, charts embedded as SVG.
const PageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root { --text: #111827; --muted: #6b7280; --rule: #e5e7eb; --accent: #0f766e; --up: #15803d; --down: #b91c1c; --th: #f3f4f6; }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font: 14px/1.5 system-ui, sans-serif; color: var(--text); max-width: 960px; margin: 0 auto; padding: 24px; }
  h1 { font-size: 1.4rem; color: var(--accent); }
  h2 { font-size: 1.15rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  h3 { font-size: 1rem; margin: 16px 0 8px; }
  .muted { color: var(--muted); font-size: 0.85rem; }
  .header { border-bottom: 3px solid var(--accent); padding-bottom: 12px; margin-bottom: 16px; }
  .banner { background: #fef2f2; border-left: 5px solid var(--down); padding: 12px 16px; margin: 12px 0; font-weight: 600; }
  .overview { display: flex; gap: 16px; align-items: flex-start; }
  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.9rem; }
  th { background: var(--th); text-align: left; padding: 6px 8px; font-weight: 600; }
  td { padding: 6px 8px; border-bottom: 1px solid var(--rule); }
  td.num { text-align: right; font-variant-numeric: tabular-nums; }
  .positive { color: var(--up); }
  .negative { color: var(--down); }
  .chart-container { margin: 12px 0; overflow-x: auto; }
  .chart-container svg { max-width: 100%; height: auto; }
  .warnings li { margin-left: 20px; color: var(--down); }
  @media print { .section { break-inside: avoid; } }
</style>
</head>
<body>
{{define "kv"}}<table>
{{range .}}<tr><td>{{.Label}}</td><td class="num">{{.Value}}</td></tr>
{{end}}</table>{{end}}

<div class="header">
  <h1>{{.Title}}</h1>
  <p class="muted">{{.GeneratedAt}}{{if .RunID}} · run {{.RunID}}{{end}}</p>
</div>

{{if .Feasibility}}
<div class="banner">FEASIBILITY RUN: features were simulated from the realized returns. Accuracy measures the harness, not predictive power.</div>
{{end}}

{{if .ShowOverall}}
<div class="section">
  <h2>Overall</h2>
  <div class="overview">
    {{template "kv" .Overall}}
    {{if .GaugeChart}}<div>{{.GaugeChart}}</div>{{end}}
  </div>
</div>
{{end}}

{{if .ShowErrors}}
<div class="section">
  <h2>Error</h2>
  {{template "kv" .Errors}}
</div>
{{end}}

{{if .ShowConfusion}}
<div class="section">
  <h2>Confusion</h2>
  {{template "kv" .Confusion}}
</div>
{{end}}

{{if .ShowConfidence}}
<div class="section">
  <h2>Confidence buckets</h2>
  <table>
  <tr><th>Certainty</th><th>Accuracy</th></tr>
  {{range .Buckets}}<tr><td>{{.Label}}</td><td class="num">{{.Value}}</td></tr>
  {{end}}
  </table>
</div>
{{end}}

{{if .ShowSegments}}
<div class="section">
  <h2>Segments</h2>
  {{range .Segments}}
  <h3>{{.Name}}</h3>
  {{if .Chart}}<div class="chart-container">{{.Chart}}</div>{{end}}
  <table>
  <tr><th>Group</th><th>Accuracy</th><th>Correct</th><th>Scored</th></tr>
  {{range .Rows}}<tr><td>{{.Key}}</td><td class="num {{if .Beats}}positive{{else}}negative{{end}}">{{.Accuracy}}</td><td class="num">{{.Correct}}</td><td class="num">{{.Total}}</td></tr>
  {{end}}
  </table>
  {{if .Hidden}}<p class="muted">{{.Hidden}} small groups hidden</p>{{end}}
  {{end}}
</div>
{{end}}

{{if .ShowCache}}
<div class="section">
  <h2>Price cache</h2>
  {{template "kv" .Cache}}
</div>
{{end}}

{{if .ShowQuality}}
<div class="section">
  <h2>Data quality</h2>
  {{template "kv" .Quality}}
  {{if .Outliers}}
  <h3>Outliers by ticker</h3>
  {{template "kv" .Outliers}}
  {{end}}
</div>
{{end}}

{{if .Warnings}}
<div class="section">
  <h2>Warnings</h2>
  <ul class="warnings">
  {{range .Warnings}}<li>{{.}}</li>
  {{end}}
  </ul>
</div>
{{end}}

</body>
</html>
`
