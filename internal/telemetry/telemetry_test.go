package telemetry

import (
	"bytes"
	"errors"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/companion/config"
)

func TestNilAndDisabledAreNoOps(t *testing.T) {
	t.Parallel()
	var nilTele *Telemetry
	nilTele.RecordRequest("ask", "gpt-oss-20b", time.Second, nil)
	nilTele.RecordTokens("ask", 1, 1, 1)
	nilTele.RecordOverBudget("gpt-oss-20b", 1, 1)

	disabled := New(config.TelemetryConfig{Enabled: false})
	disabled.RecordRequest("ask", "gpt-oss-20b", time.Second, errors.New("ignored"))
	disabled.RecordTokens("ask", 1, 1, 1)
}

func TestMetricsExposition(t *testing.T) {
	t.Parallel()
	tele := New(config.TelemetryConfig{Enabled: true})
	tele.RecordRequest("ask", "gpt-oss-20b", 150*time.Millisecond, nil)
	tele.RecordRequest("briefing", "gpt-oss-20b", time.Second, errors.New("boom"))
	tele.RecordTokens("ask", 12, 7, 42)
	tele.RecordOverBudget("gpt-oss-20b", 200000, 131072)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	tele.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`companion_pipeline_requests_total{model="gpt-oss-20b",operation="ask",status="success"} 1`,
		`companion_pipeline_requests_total{model="gpt-oss-20b",operation="briefing",status="error"} 1`,
		`companion_llm_tokens_total{kind="estimated",operation="ask"} 42`,
		`companion_prompt_over_budget_total{model="gpt-oss-20b"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestLogFileDestination(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "telemetry.log")
	tele := New(config.TelemetryConfig{Enabled: true, LogFile: path})
	tele.RecordOverBudget("gpt-oss-20b", 200000, 131072)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "prompt over advisory budget") {
		t.Fatalf("log line not written to file: %q", data)
	}
}

func TestLogSnapshot(t *testing.T) {
	t.Parallel()
	tele := New(config.TelemetryConfig{Enabled: true})
	var buf bytes.Buffer
	tele.logger = log.New(&buf, "[TELEMETRY] ", 0)

	tele.RecordRequest("ask", "gpt-oss-20b", time.Millisecond, nil)
	tele.RecordRequest("ask", "gpt-oss-20b", time.Millisecond, nil)
	tele.RecordRequest("briefing", "gpt-oss-20b", time.Millisecond, errors.New("boom"))
	tele.RecordTokens("ask", 10, 5, 0)
	tele.logSnapshot()

	if !strings.Contains(buf.String(), "requests=2/3 tokens=15") {
		t.Fatalf("unexpected snapshot line: %q", buf.String())
	}
}

func TestInstancesDoNotShareState(t *testing.T) {
	t.Parallel()
	a := New(config.TelemetryConfig{Enabled: true})
	b := New(config.TelemetryConfig{Enabled: true})
	a.RecordRequest("ask", "gpt-oss-20b", time.Millisecond, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)
	if strings.Contains(rec.Body.String(), `status="success"} 1`) {
		t.Fatalf("registries must be isolated per instance")
	}
}
