package apivar

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"os"
	"strings"
)

// WriteReportJSON writes a SuiteSummary to a JSON file.
func WriteReportJSON(path string, sum SuiteSummary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Minimal JUnit reporter for CI compatibility.
type junitTestsuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestcase `xml:"testcase"`
}

type junitTestcase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteReportJUnit writes a SuiteSummary to JUnit XML for CI consumers.
func WriteReportJUnit(path string, sum SuiteSummary) error {
	ts := junitTestsuite{
		Name:     suiteName(sum),
		Tests:    len(sum.Tests),
		Failures: sum.Failed,
		Skipped:  sum.Skipped,
		Time:     fmt.Sprintf("%.3f", sum.TotalElapsed.Seconds()),
	}
	for _, t := range sum.Tests {
		tc := junitTestcase{
			Name:      t.Name,
			Classname: t.UID,
			Time:      fmt.Sprintf("%.3f", t.Duration.Seconds()),
		}
		switch t.Outcome {
		case OutcomeSkipped:
			tc.Skipped = &junitSkipped{}
		case OutcomeFailed:
			tc.Failure = &junitFailure{
				Message: firstLine(t.Message),
				Type:    "validation",
				Body:    t.Message,
			}
		}
		ts.Cases = append(ts.Cases, tc)
	}
	data, err := xml.MarshalIndent(ts, "", "  ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	return os.WriteFile(path, data, 0o644)
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>apivar report</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 16px; background: #fafafa; }
    h1 { margin-bottom: 8px; }
    .summary { margin-bottom: 16px; }
    table { width: 100%; border-collapse: collapse; background: #fff; }
    th, td { padding: 8px 10px; border: 1px solid #e0e0e0; font-size: 14px; vertical-align: top; }
    th { background: #f5f5f5; text-align: left; }
    .status-passed { color: #2e7d32; font-weight: 600; }
    .status-failed { color: #c62828; font-weight: 600; }
    .status-skipped { color: #9e9e9e; font-weight: 600; }
    .mono { font-family: "SFMono-Regular", Consolas, "Liberation Mono", Menlo, monospace; font-size: 12px; white-space: pre-wrap; }
  </style>
</head>
<body>
  <h1>apivar report</h1>
  <div class="summary">
    <div class="mono">{{.SuitePath}}</div>
    <div>Total: {{.Total}} &nbsp; Passed: {{.Passed}} &nbsp; Failed: {{.Failed}} &nbsp; Skipped: {{.Skipped}} &nbsp; Time: {{.TotalElapsed}}</div>
  </div>
  <table>
    <thead>
      <tr>
        <th>#</th>
        <th>Name</th>
        <th>Variants</th>
        <th>Status</th>
        <th>Duration</th>
        <th>Message</th>
      </tr>
    </thead>
    <tbody>
      {{range $idx, $t := .Tests}}
      <tr>
        <td>{{$idx}}</td>
        <td>{{$t.Name}}</td>
        <td>{{range $i, $v := $t.Variants}}{{if $i}}, {{end}}{{$v}}{{end}}</td>
        <td><span class="status-{{$t.Outcome}}">{{$t.Outcome}}</span></td>
        <td>{{$t.Duration}}</td>
        <td>{{if $t.Message}}<span class="mono">{{$t.Message}}</span>{{end}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>
</body>
</html>`))

// WriteReportHTML renders a simple HTML table summary.
func WriteReportHTML(path string, sum SuiteSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return htmlTemplate.Execute(f, sum)
}

// WriteReport picks the reporter function by format.
func WriteReport(format, path string, sum SuiteSummary) error {
	switch strings.ToLower(format) {
	case "json", "":
		return WriteReportJSON(path, sum)
	case "junit":
		return WriteReportJUnit(path, sum)
	case "html":
		return WriteReportHTML(path, sum)
	case "trx":
		return WriteReportTRX(path, sum)
	default:
		return fmt.Errorf("unknown format %s", format)
	}
}

func suiteName(sum SuiteSummary) string {
	if sum.SuitePath == "" {
		return "apivar"
	}
	return sum.SuitePath
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
