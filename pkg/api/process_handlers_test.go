package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/growthops/sheetpulse/pkg/push"
)

func TestManualProcessStartsRun(t *testing.T) {
	ts := newTestServer()
	ts.push.started = make(chan struct{})
	ts.push.result = push.RunResult{Total: 2, Succeeded: 2}

	rec, envelope := ts.request(t, "POST", "/api/process/manual", adminToken, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Processing started", envelope.Message)

	select {
	case <-ts.push.started:
	case <-time.After(time.Second):
		t.Fatal("push run never started")
	}
}
