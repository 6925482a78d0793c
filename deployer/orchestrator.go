package main

import (
	"context"
	"fmt"
	"log"

	"code.linksmart.eu/dt/page-deployer/deployer/env"
	"code.linksmart.eu/dt/page-deployer/deployer/model"
	"github.com/davecgh/go-spew/spew"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// orchestrator drives one task request from received to externally notified.
type orchestrator struct {
	generator generator
	publisher *publisher
	notifier  *notifier
	registry  *registry
}

func newOrchestrator(g generator, p *publisher, n *notifier, r *registry) *orchestrator {
	return &orchestrator{
		generator: g,
		publisher: p,
		notifier:  n,
		registry:  r,
	}
}

// process runs the pipeline for one request. It is called in its own goroutine
// and never returns an error: a failed stage ends the run and is only logged.
func (o *orchestrator) process(task model.TaskRequest, record *deployment) {
	ctx := context.Background()
	log.Printf("orchestrator: processing task %s (round %d)", task.Task, task.Round)
	if env.Debug {
		log.Printf("orchestrator: request:\n%s", spew.Sdump(task))
	}

	brief := task.Brief
	for _, att := range task.Attachments {
		content, ok := decodeAttachment(att)
		if !ok {
			continue
		}
		brief += fmt.Sprintf("\n\n--- Attachment: %s ---\n%s", att.Name, content)
	}

	var priorCode string
	if task.Round > 1 {
		var err error
		priorCode, err = o.publisher.priorCode(ctx, task.Task, "index.html")
		if err != nil {
			log.Printf("orchestrator: warning: could not fetch existing code: %s", err)
			priorCode = ""
		}
	}

	o.registry.setStatus(record.ID, StatusGenerating)
	code, err := o.generator.generateCode(ctx, brief, priorCode)
	if err != nil || code == "" {
		o.fail(record.ID, fmt.Errorf("error generating code: %v", err))
		return
	}
	if priorCode != "" {
		stat := diffStat(priorCode, code)
		log.Printf("orchestrator: revision diff for %s: %s", task.Task, stat)
		o.registry.setDiffStat(record.ID, stat)
	}

	readme, err := o.generator.generateReadme(ctx, brief, code)
	if err != nil {
		o.fail(record.ID, fmt.Errorf("error generating readme: %w", err))
		return
	}

	o.registry.setStatus(record.ID, StatusPublishing)
	files := map[string]string{
		"index.html": code,
		"README.md":  readme,
	}
	result, err := o.publisher.deploy(ctx, task.Task, files, task.Round)
	if err != nil {
		o.fail(record.ID, fmt.Errorf("error deploying %s: %w", task.Task, err))
		return
	}
	o.registry.setResult(record.ID, result)

	o.registry.setStatus(record.ID, StatusNotifying)
	o.notifier.notify(task.EvaluationURL, model.NotificationPayload{
		Email:     task.Email,
		Task:      task.Task,
		Round:     task.Round,
		Nonce:     task.Nonce,
		RepoURL:   result.RepoURL,
		CommitSHA: result.CommitSHA,
		PagesURL:  result.PagesURL,
	})

	o.registry.setStatus(record.ID, StatusSucceeded)
	log.Printf("orchestrator: task %s (round %d) done", task.Task, task.Round)
}

func (o *orchestrator) fail(id string, err error) {
	log.Println("orchestrator:", err)
	o.registry.setError(id, err.Error())
}

// diffStat summarizes a revision as inserted/deleted character counts.
func diffStat(before, after string) string {
	diffs := diffmatchpatch.New().DiffMain(before, after, false)
	var inserted, deleted int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	return fmt.Sprintf("+%d -%d", inserted, deleted)
}
