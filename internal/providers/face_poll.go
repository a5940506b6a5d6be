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

// PollProvider is the polling-based personalization backend: submit returns
// a task handle, progress is queried by a later runner invocation.
type PollProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logger.Logger
}

func NewPollProvider(cfg config.FaceConfig, client *http.Client, log *logger.Logger) *PollProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &PollProvider{
		baseURL: strings.TrimRight(cfg.PollBaseURL, "/"),
		apiKey:  cfg.PollAPIKey,
		client:  client,
		logger:  log,
	}
}

func (p *PollProvider) Name() string { return "face-poll" }

type pollSubmitRequest struct {
	SourceURL string `json:"source_url"`
	TargetURL string `json:"target_url"`
}

type pollSubmitResponse struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error,omitempty"`
}

func (p *PollProvider) Submit(ctx context.Context, faceURL, illustrationURL string) (string, error) {
	reqBody, err := json.Marshal(pollSubmitRequest{SourceURL: faceURL, TargetURL: illustrationURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/swaps", bytes.NewBuffer(reqBody))
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
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("personalization service returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed pollSubmitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("personalization submit error: %s", parsed.Error)
	}
	if parsed.TaskID == "" {
		return "", fmt.Errorf("personalization submit returned no task id")
	}
	return parsed.TaskID, nil
}

type pollStatusResponse struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (p *PollProvider) PollStatus(ctx context.Context, handle string) (TaskState, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/v1/swaps/"+handle, nil)
	if err != nil {
		return TaskPending, "", fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return TaskPending, "", fmt.Errorf("personalization service error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TaskPending, "", fmt.Errorf("failed to read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return TaskPending, "", fmt.Errorf("personalization status returned %d for task %s: %s",
			resp.StatusCode, handle, truncate(string(body), 200))
	}

	var parsed pollStatusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return TaskPending, "", fmt.Errorf("failed to decode status response: %w", err)
	}

	switch strings.ToUpper(parsed.Status) {
	case "COMPLETED", "SUCCEEDED", "DONE":
		if parsed.ResultURL == "" {
			return TaskFailed, "", fmt.Errorf("task %s completed without result url", handle)
		}
		return TaskCompleted, parsed.ResultURL, nil
	case "FAILED", "ERROR":
		return TaskFailed, "", nil
	default:
		return TaskPending, "", nil
	}
}

// HandleCallback is not part of the polling contract; results are pulled.
func (p *PollProvider) HandleCallback(payload []byte) (string, string, error) {
	return "", "", fmt.Errorf("provider %s does not deliver callbacks", p.Name())
}
