package apivar

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

const trxNamespace = "http://microsoft.com/schemas/VisualStudio/TeamTest/2010"

// Visual Studio test results, the subset Azure Pipelines and dotnet tooling read.
type trxTestRun struct {
	XMLName         xml.Name         `xml:"TestRun"`
	Xmlns           string           `xml:"xmlns,attr"`
	ID              string           `xml:"id,attr"`
	Name            string           `xml:"name,attr"`
	Times           trxTimes         `xml:"Times"`
	Results         []trxUnitResult  `xml:"Results>UnitTestResult"`
	TestDefinitions []trxUnitTest    `xml:"TestDefinitions>UnitTest"`
	TestEntries     []trxTestEntry   `xml:"TestEntries>TestEntry"`
	TestLists       []trxTestList    `xml:"TestLists>TestList"`
	ResultSummary   trxResultSummary `xml:"ResultSummary"`
}

type trxTimes struct {
	Creation string `xml:"creation,attr"`
	Start    string `xml:"start,attr"`
	Finish   string `xml:"finish,attr"`
}

type trxUnitResult struct {
	ExecutionID  string     `xml:"executionId,attr"`
	TestID       string     `xml:"testId,attr"`
	TestName     string     `xml:"testName,attr"`
	ComputerName string     `xml:"computerName,attr"`
	Duration     string     `xml:"duration,attr"`
	Outcome      string     `xml:"outcome,attr"`
	TestType     string     `xml:"testType,attr"`
	TestListID   string     `xml:"testListId,attr"`
	Output       *trxOutput `xml:"Output,omitempty"`
}

type trxOutput struct {
	StdOut    string        `xml:"StdOut,omitempty"`
	ErrorInfo *trxErrorInfo `xml:"ErrorInfo,omitempty"`
}

type trxErrorInfo struct {
	Message string `xml:"Message"`
}

type trxUnitTest struct {
	ID         string        `xml:"id,attr"`
	Name       string        `xml:"name,attr"`
	Storage    string        `xml:"storage,attr"`
	Execution  trxExecution  `xml:"Execution"`
	TestMethod trxTestMethod `xml:"TestMethod"`
}

type trxExecution struct {
	ID string `xml:"id,attr"`
}

type trxTestMethod struct {
	CodeBase  string `xml:"codeBase,attr"`
	ClassName string `xml:"className,attr"`
	Name      string `xml:"name,attr"`
}

type trxTestEntry struct {
	TestID      string `xml:"testId,attr"`
	ExecutionID string `xml:"executionId,attr"`
	TestListID  string `xml:"testListId,attr"`
}

type trxTestList struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type trxResultSummary struct {
	Outcome  string      `xml:"outcome,attr"`
	Counters trxCounters `xml:"Counters"`
}

type trxCounters struct {
	Total       int `xml:"total,attr"`
	Executed    int `xml:"executed,attr"`
	Passed      int `xml:"passed,attr"`
	Failed      int `xml:"failed,attr"`
	NotExecuted int `xml:"notExecuted,attr"`
}

// trxTestTypeUnit is the well-known unit test type id.
const trxTestTypeUnit = "13cdc9d9-ddb5-4fa4-a97d-d965ccfc6d4b"

var trxNow = time.Now

// WriteReportTRX writes a SuiteSummary as a Visual Studio TRX file. Test ids
// are derived from the test UID so reruns keep a stable identity.
func WriteReportTRX(path string, sum SuiteSummary) error {
	finish := trxNow()
	start := finish.Add(-sum.TotalElapsed)
	name := suiteName(sum)
	listID := trxID("list:" + name)

	run := trxTestRun{
		Xmlns: trxNamespace,
		ID:    uuid.NewString(),
		Name:  name,
		Times: trxTimes{
			Creation: start.Format(time.RFC3339Nano),
			Start:    start.Format(time.RFC3339Nano),
			Finish:   finish.Format(time.RFC3339Nano),
		},
		TestLists: []trxTestList{{ID: listID, Name: "apivar"}},
	}

	for _, t := range sum.Tests {
		testID := trxID(t.UID)
		execID := uuid.NewString()
		res := trxUnitResult{
			ExecutionID:  execID,
			TestID:       testID,
			TestName:     t.Name,
			ComputerName: hostname(),
			Duration:     trxDuration(t.Duration),
			Outcome:      trxOutcome(t.Outcome),
			TestType:     trxTestTypeUnit,
			TestListID:   listID,
		}
		if t.Outcome == OutcomeFailed && t.Message != "" {
			res.Output = &trxOutput{ErrorInfo: &trxErrorInfo{Message: t.Message}}
		}
		run.Results = append(run.Results, res)
		run.TestDefinitions = append(run.TestDefinitions, trxUnitTest{
			ID:        testID,
			Name:      t.Name,
			Storage:   sum.SuitePath,
			Execution: trxExecution{ID: execID},
			TestMethod: trxTestMethod{
				CodeBase:  sum.SuitePath,
				ClassName: t.UID,
				Name:      t.Name,
			},
		})
		run.TestEntries = append(run.TestEntries, trxTestEntry{TestID: testID, ExecutionID: execID, TestListID: listID})
	}

	run.ResultSummary = trxResultSummary{
		Outcome: "Completed",
		Counters: trxCounters{
			Total:       sum.Total,
			Executed:    sum.Passed + sum.Failed,
			Passed:      sum.Passed,
			Failed:      sum.Failed,
			NotExecuted: sum.Skipped,
		},
	}
	if sum.Failed > 0 {
		run.ResultSummary.Outcome = "Failed"
	}

	data, err := xml.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	return os.WriteFile(path, data, 0o644)
}

func trxID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func trxOutcome(o Outcome) string {
	switch o {
	case OutcomePassed:
		return "Passed"
	case OutcomeFailed:
		return "Failed"
	default:
		return "NotExecuted"
	}
}

// hh:mm:ss.fffffff
func trxDuration(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%07d", h, m, s, d/100)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}
