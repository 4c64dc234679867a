package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type turnRequest struct {
	SessionID   string `json:"sessionId"`
	PhoneNumber string `json:"phoneNumber"`
	Utterance   string `json:"utterance"`
}

type turnResult struct {
	TurnID     string `json:"turnId"`
	Reply      string `json:"reply"`
	Specialist string `json:"specialist"`
	Sentiment  string `json:"sentiment"`
	Ended      bool   `json:"ended"`
}

type endResult struct {
	LeadGrade       string `json:"leadGrade"`
	LeadGradeReason string `json:"leadGradeReason"`
	Summary         string `json:"summary"`
	NextSteps       string `json:"nextSteps"`
	SentimentTrend  string `json:"sentimentTrend"`
}

var script = []string{
	"Hello, who is this?",
	"Yes, you can record the call",
	"We have budget approved for this quarter and I'm the decision maker",
	"We really need this, our team is drowning in manual follow-ups, ideally within the next month",
	"Honestly it sounds a bit expensive compared to what we pay now",
	"This is great, let's book a demo. My email is jane@example.com, Tuesday 2026-11-03 at 14:00",
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "orchestrator base URL")
	phone := flag.String("phone", "+4915112345678", "caller phone number")
	secret := flag.String("secret", "", "webhook secret")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}
	sessionID := "call-" + uuid.NewString()[:8]
	log.Printf("Starting call: sessionId=%s phone=%s", sessionID, *phone)

	for _, utterance := range script {
		var res turnResult
		req := turnRequest{SessionID: sessionID, PhoneNumber: *phone, Utterance: utterance}
		if err := post(client, *addr+"/v1/turns", *secret, req, &res); err != nil {
			log.Fatalf("turn failed: %v", err)
		}
		log.Printf("caller: %s", utterance)
		log.Printf("agent [%s, %s]: %s", res.Specialist, res.Sentiment, res.Reply)
		if res.Ended {
			log.Println("Agent closed the call")
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	var end endResult
	if err := post(client, *addr+"/v1/sessions/end", *secret, map[string]string{
		"sessionId":   sessionID,
		"phoneNumber": *phone,
	}, &end); err != nil {
		log.Fatalf("end failed: %v", err)
	}

	log.Printf("Lead grade: %s (%s)", end.LeadGrade, end.LeadGradeReason)
	log.Printf("Sentiment trend: %s", end.SentimentTrend)
	log.Printf("Summary: %s", end.Summary)
	log.Printf("Next steps: %s", end.NextSteps)
}

func post(client *http.Client, url, secret string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
