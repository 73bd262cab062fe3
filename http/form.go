package http

import (
	"html/template"
	"net/http"
	"strings"

	"horsecolic/ml"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/text/message"
)

// formField is one input of the triage form.
type formField struct {
	Name    string
	Label   string
	Min     string
	Max     string
	Step    string
	Options []ml.Code
	Value   string
}

// formFields are the observations a clinician can enter quickly; every other
// column is sent as missing and imputed.
var formFields = []formField{
	{Name: "pulse", Label: "Pulse (bpm)", Min: "30", Max: "180", Step: "1"},
	{Name: "rectal_temp", Label: "Rectal temperature (°C)", Min: "35", Max: "42", Step: "0.1"},
	{Name: "respiratory_rate", Label: "Respiratory rate (breaths/min)", Min: "10", Max: "100", Step: "1"},
	{Name: "packed_cell_volume", Label: "Packed cell volume (%)", Min: "20", Max: "75", Step: "0.1"},
	{Name: "pain", Label: "Pain", Options: ml.CodeBook["pain"]},
	{Name: "surgery", Label: "Surgery", Options: ml.CodeBook["surgery"]},
	{Name: "age", Label: "Age", Options: ml.CodeBook["age"]},
}

type formPage struct {
	Title      string
	Button     string
	Lang       string
	Fields     []formField
	Error      string
	Verdict    string
	Confidence string
	Survived   bool
}

var formTemplate = template.Must(template.New("form").Funcs(template.FuncMap{
	"title": func(s string) string { return strings.ReplaceAll(s, "_", " ") },
	"code":  func(v float64) string { return cast.ToString(v) },
}).Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 32rem; margin: 2rem auto; }
label { display: block; margin-top: .75rem; }
input, select { width: 100%; padding: .3rem; }
.result { margin-top: 1.5rem; padding: 1rem; border-radius: .3rem; }
.survived { background: #e3f6e8; }
.died { background: #fbe4e4; }
.error { color: #a00; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<form method="post" action="/?lang={{.Lang}}">
{{range .Fields}}
<label for="{{.Name}}">{{.Label}}</label>
{{if .Options}}
<select id="{{.Name}}" name="{{.Name}}">
<option value="">-</option>
{{$v := .Value}}{{range .Options}}<option value="{{code .Value}}"{{if eq (code .Value) $v}} selected{{end}}>{{title .Name}}</option>{{end}}
</select>
{{else}}
<input id="{{.Name}}" name="{{.Name}}" type="number" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Value}}">
{{end}}
{{end}}
<p><button type="submit">{{.Button}}</button></p>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Verdict}}
<div class="result {{if .Survived}}survived{{else}}died{{end}}">
<strong>{{.Verdict}}</strong><br>{{.Confidence}}
</div>
{{end}}
</body>
</html>
`))

func (h *handlers) newFormPage(r *http.Request) (formPage, *message.Printer) {
	tag := requestLanguage(r)
	p := message.NewPrinter(tag)
	fields := make([]formField, len(formFields))
	copy(fields, formFields)
	return formPage{
		Title:  p.Sprintf(msgTitle),
		Button: p.Sprintf(msgPredict),
		Lang:   tag.String(),
		Fields: fields,
	}, p
}

func (h *handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	page, _ := h.newFormPage(r)
	h.renderForm(w, http.StatusOK, page)
}

func (h *handlers) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	page, p := h.newFormPage(r)
	if err := r.ParseForm(); err != nil {
		page.Error = err.Error()
		h.renderForm(w, http.StatusBadRequest, page)
		return
	}

	rec, err := h.recordFromForm(r, page.Fields)
	if err != nil {
		page.Error = p.Sprintf(msgInvalid, err.Error())
		h.renderForm(w, http.StatusBadRequest, page)
		return
	}

	pred, err := h.Predictor.Predict(r.Context(), rec)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusServiceUnavailable {
			page.Error = p.Sprintf(msgUnavailable)
		} else {
			page.Error = err.Error()
		}
		if status >= http.StatusInternalServerError {
			h.Logger.Error("form prediction failed", zap.Error(err))
		}
		h.renderForm(w, status, page)
		return
	}

	h.record(r.Context(), "form", rec, pred)
	page.Verdict = verdict(p, pred.Survived)
	page.Confidence = p.Sprintf(msgConfidence, pred.Confidence*100)
	page.Survived = pred.Survived
	h.renderForm(w, http.StatusOK, page)
}

// recordFromForm fills the record from posted values and echoes them into
// fields. An empty input stays missing; a non-numeric one is an error naming the field.
func (h *handlers) recordFromForm(r *http.Request, fields []formField) (ml.FeatureRecord, error) {
	row := ml.FeatureRecord{}.Row()
	var bad []string
	for i := range fields {
		raw := strings.TrimSpace(r.PostFormValue(fields[i].Name))
		fields[i].Value = raw
		if raw == "" {
			continue
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			bad = append(bad, fields[i].Name)
			continue
		}
		row[fields[i].Name] = v
	}
	if len(bad) > 0 {
		return ml.FeatureRecord{}, &formError{fields: bad}
	}
	return ml.RecordFromRow(row), nil
}

type formError struct {
	fields []string
}

func (e *formError) Error() string {
	return strings.Join(e.fields, ", ")
}

func (h *handlers) renderForm(w http.ResponseWriter, status int, page formPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := formTemplate.Execute(w, page); err != nil {
		h.Logger.Error("render form", zap.Error(err))
	}
}
