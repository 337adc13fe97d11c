package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-progress-tracker/internal/tracker"
)

// ExampleProgressHandler_Report shows a worker reporting a total and a poller
// reading the percentage back.
func ExampleProgressHandler_Report() {
	handler := NewProgressHandler(tracker.New(tracker.Config{}), nil, zap.NewNop())

	report := httptest.NewRequest(http.MethodPost, "/api/progress",
		bytes.NewBufferString(`{"jobId":"upload-42","total":4}`))
	handler.Report(httptest.NewRecorder(), report)

	update := httptest.NewRequest(http.MethodPut, "/api/progress",
		bytes.NewBufferString(`{"jobId":"upload-42","completed":1}`))
	handler.UpdateCompleted(httptest.NewRecorder(), update)

	rec := httptest.NewRecorder()
	handler.Get(rec, httptest.NewRequest(http.MethodGet, "/api/progress?jobId=upload-42", nil))

	var payload struct {
		Status     string `json:"status"`
		Percentage int    `json:"percentage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		panic(err)
	}
	fmt.Printf("%s %d%%\n", payload.Status, payload.Percentage)
	// Output:
	// processing 25%
}
