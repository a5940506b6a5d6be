package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ms-bookworks/internal/config"
	"ms-bookworks/internal/logger"
)

// CallbackProvider is the push-based personalization backend: submit
// registers a webhook endpoint and the provider posts the completion payload
// there. PollStatus always reports pending, the inbound callback resolves
// the task.
type CallbackProvider struct {
	baseURL     string
	apiKey      string
	callbackURL string
	client      *http.Client
	logger      *logger.Logger
}

func NewCallbackProvider(cfg config.FaceConfig, client *http.Client, log *logger.Logger) *CallbackProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &CallbackProvider{
		baseURL:     strings.TrimRight(cfg.CallbackBaseURL, "/"),
		apiKey:      cfg.CallbackAPIKey,
		callbackURL: cfg.CallbackEndpoint,
		client:      client,
		logger:      log,
	}
}

func (p *CallbackProvider) Name() string { return "face-callback" }

type callbackSubmitRequest struct {
	FaceURL    string `json:"face_url"`
	ImageURL   string `json:"image_url"`
	WebhookURL string `json:"webhook_url"`
}

type callbackSubmitResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

func (p *CallbackProvider) Submit(ctx context.Context, faceURL, illustrationURL string) (string, error) {
	reqBody, err := json.Marshal(callbackSubmitRequest{
		FaceURL:    faceURL,
		ImageURL:   illustrationURL,
		WebhookURL: p.callbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/jobs", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("personalization service error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("personalization service returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed callbackSubmitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("personalization submit error: %s", parsed.Error)
	}
	if parsed.JobID == "" {
		return "", fmt.Errorf("personalization submit returned no job id")
	}
	return parsed.JobID, nil
}

// PollStatus reports pending; results arrive via the inbound callback.
func (p *CallbackProvider) PollStatus(ctx context.Context, handle string) (TaskState, string, error) {
	return TaskPending, "", nil
}

type callbackPayload struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (p *CallbackProvider) HandleCallback(payload []byte) (string, string, error) {
	var parsed callbackPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", "", fmt.Errorf("malformed callback payload: %w", err)
	}
	if parsed.JobID == "" {
		return "", "", fmt.Errorf("callback payload has no job id")
	}

	switch strings.ToUpper(parsed.Status) {
	case "COMPLETED", "SUCCEEDED", "DONE":
		if parsed.ResultURL == "" {
			return parsed.JobID, "", fmt.Errorf("callback for job %s has no result url", parsed.JobID)
		}
		return parsed.JobID, parsed.ResultURL, nil
	case "FAILED", "ERROR":
		return parsed.JobID, "", fmt.Errorf("personalization job %s failed: %s", parsed.JobID, parsed.Error)
	default:
		return parsed.JobID, "", fmt.Errorf("callback for job %s has unexpected status %q", parsed.JobID, parsed.Status)
	}
}
