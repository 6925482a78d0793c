package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"code.linksmart.eu/dt/page-deployer/deployer/model"
)

type captureServer struct {
	mu       sync.Mutex
	payloads []model.NotificationPayload
	srv      *httptest.Server
}

func newCaptureServer() *captureServer {
	c := &captureServer{}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p model.NotificationPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	return c
}

func (c *captureServer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func (c *captureServer) last() model.NotificationPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloads[len(c.payloads)-1]
}

func newTestOrchestrator(gen generator) (*orchestrator, *fakeHost, *registry, *captureServer) {
	h := newFakeHost()
	reg := newRegistry(newEventBus())
	n := newNotifier(5, 0)
	n.sleep = func(time.Duration) {}
	o := newOrchestrator(gen, newPublisher(h, 0), n, reg)
	return o, h, reg, newCaptureServer()
}

func testRequest(capture *captureServer, round int) model.TaskRequest {
	return model.TaskRequest{
		Email:         "dev@example.com",
		Task:          "sum-page",
		Round:         round,
		Nonce:         "n-1",
		Brief:         "Build a page that shows the sum of 2 and 3",
		EvaluationURL: capture.srv.URL,
	}
}

func TestProcessRound1(t *testing.T) {
	gen := &stubGenerator{code: "<html>sum is 5</html>", readme: "# Sum Page"}
	o, h, reg, capture := newTestOrchestrator(gen)
	defer capture.srv.Close()

	req := testRequest(capture, 1)
	record := reg.add(req.Task, req.Round)
	o.process(req, record)

	if capture.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", capture.count())
	}
	payload := capture.last()
	if payload.Email != "dev@example.com" || payload.Task != "sum-page" ||
		payload.Round != 1 || payload.Nonce != "n-1" {
		t.Errorf("identifying fields not echoed: %+v", payload)
	}
	if payload.CommitSHA == "" {
		t.Error("empty commit_sha")
	}
	if payload.PagesURL != "https://octo.github.io/sum-page/" {
		t.Errorf("pages_url: %s", payload.PagesURL)
	}
	if payload.RepoURL != "https://github.com/octo/sum-page" {
		t.Errorf("repo_url: %s", payload.RepoURL)
	}

	state := h.state("sum-page")
	if state == nil {
		t.Fatal("repository not created")
	}
	if state.files["index.html"] != "<html>sum is 5</html>" {
		t.Errorf("index.html: %q", state.files["index.html"])
	}
	if state.files["README.md"] != "# Sum Page" {
		t.Errorf("README.md: %q", state.files["README.md"])
	}
	if _, found := state.files["LICENSE"]; !found {
		t.Error("LICENSE missing")
	}
	if !h.pages["sum-page"] {
		t.Error("pages not enabled")
	}

	if d := reg.get(record.ID); d.Status != StatusSucceeded {
		t.Errorf("record status: %s", d.Status)
	}
}

func TestProcessRound2UsesPriorCode(t *testing.T) {
	gen := &stubGenerator{code: "<html>v1</html>", readme: "# v1"}
	o, h, reg, capture := newTestOrchestrator(gen)
	defer capture.srv.Close()

	req := testRequest(capture, 1)
	o.process(req, reg.add(req.Task, 1))
	firstSHA := capture.last().CommitSHA

	gen.code = "<html>v2</html>"
	req = testRequest(capture, 2)
	record := reg.add(req.Task, 2)
	o.process(req, record)

	if gen.calls() != 2 {
		t.Fatalf("expected 2 generator calls, got %d", gen.calls())
	}
	if gen.existing[1] != "<html>v1</html>" {
		t.Errorf("round 2 generator got existing code %q, want round 1 artifact", gen.existing[1])
	}
	if capture.count() != 2 {
		t.Fatalf("expected 2 notifications, got %d", capture.count())
	}
	if capture.last().CommitSHA == firstSHA {
		t.Error("round 2 commit sha equals round 1")
	}
	if state := h.state("sum-page"); state.files["index.html"] != "<html>v2</html>" {
		t.Errorf("index.html after revision: %q", state.files["index.html"])
	}
	if d := reg.get(record.ID); d.DiffStat == "" {
		t.Error("revision record has no diff stat")
	}
}

func TestProcessRound2MissingPriorCode(t *testing.T) {
	gen := &stubGenerator{code: "<html>fresh</html>", readme: "# fresh"}
	o, _, reg, capture := newTestOrchestrator(gen)
	defer capture.srv.Close()

	// round 2 against a task that was never deployed: the prior-code fetch
	// fails and the pipeline regenerates from scratch
	req := testRequest(capture, 2)
	o.process(req, reg.add(req.Task, 2))

	if gen.calls() != 1 {
		t.Fatalf("expected 1 generator call, got %d", gen.calls())
	}
	if gen.existing[0] != "" {
		t.Errorf("generator got existing code %q, want none", gen.existing[0])
	}
	if capture.count() != 1 {
		t.Fatalf("expected the run to complete, got %d notifications", capture.count())
	}
}

func TestProcessGenerationFailureAborts(t *testing.T) {
	gen := &stubGenerator{code: ""}
	o, h, reg, capture := newTestOrchestrator(gen)
	defer capture.srv.Close()

	req := testRequest(capture, 1)
	record := reg.add(req.Task, 1)
	o.process(req, record)

	if capture.count() != 0 {
		t.Fatalf("no notification expected after generation failure, got %d", capture.count())
	}
	if state := h.state("sum-page"); state != nil && state.advances != 0 {
		t.Errorf("nothing may be committed, got %d advances", state.advances)
	}
	d := reg.get(record.ID)
	if d.Status != StatusFailed || d.Error == "" {
		t.Errorf("record: status=%s error=%q", d.Status, d.Error)
	}
}

func TestProcessAttachmentsAppendedToBrief(t *testing.T) {
	gen := &stubGenerator{code: "<html></html>", readme: "#"}
	o, _, reg, capture := newTestOrchestrator(gen)
	defer capture.srv.Close()

	csv := "a,b\n1,2"
	req := testRequest(capture, 1)
	req.Attachments = []model.Attachment{
		{Name: "data.csv", URL: "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte(csv))},
		{Name: "broken", URL: "no separator here"},
	}
	o.process(req, reg.add(req.Task, 1))

	brief := gen.briefs[0]
	if !strings.Contains(brief, "--- Attachment: data.csv ---\n"+csv) {
		t.Errorf("attachment not appended to brief:\n%s", brief)
	}
	if strings.Contains(brief, "broken") {
		t.Error("failed decode must be skipped, not appended")
	}
	if capture.count() != 1 {
		t.Fatal("a failed attachment decode must not abort the run")
	}
}

func TestDiffStat(t *testing.T) {
	stat := diffStat("abc", "abXc")
	if stat != "+1 -0" {
		t.Errorf("diffStat: %s", stat)
	}
}
