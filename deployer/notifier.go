package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"code.linksmart.eu/dt/page-deployer/deployer/model"
)

// notifier delivers the deployment result to the caller's evaluation endpoint.
// All outcomes are terminal within notify: exhausted retries are logged and
// swallowed, never returned.
type notifier struct {
	client *http.Client
	tries  int
	delay  time.Duration
	sleep  func(time.Duration)
}

func newNotifier(tries int, delay time.Duration) *notifier {
	return &notifier{
		client: &http.Client{Timeout: 30 * time.Second},
		tries:  tries,
		delay:  delay,
		sleep:  time.Sleep,
	}
}

// notify posts the payload, doubling the backoff after every failed attempt.
// Only HTTP 200 counts as delivered.
func (n *notifier) notify(url string, payload model.NotificationPayload) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notifier: error marshalling payload: %s", err)
		return
	}

	delay := n.delay
	for attempt := 1; attempt <= n.tries; attempt++ {
		log.Printf("notifier: notifying %s (attempt %d/%d)", url, attempt, n.tries)
		err = n.post(url, b)
		if err == nil {
			log.Println("notifier: notification successful")
			return
		}
		log.Printf("notifier: attempt %d failed: %s", attempt, err)

		if attempt < n.tries {
			log.Println("notifier: retrying in", delay)
			n.sleep(delay)
			delay *= 2
		}
	}
	log.Printf("notifier: giving up on %s after %d attempts", url, n.tries)
}

func (n *notifier) post(url string, body []byte) error {
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}
