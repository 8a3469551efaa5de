package vendorapi

import (
	"context"
	"net/http"
)

// Image generation job statuses reported by the backend.
const (
	JobStatusCompleted = "completed"
)

// JobImage is one generated image in a completed job.
type JobImage struct {
	Type string `json:"type"`
	URL  string `json:"value"`
}

// JobStatus is the state of an AI image generation job.
type JobStatus struct {
	Status       string     `json:"status"`
	Images       []JobImage `json:"result_image_url"`
	ErrorMessage string     `json:"error_message"`
}

// StartImageGeneration starts an AI image generation job for the given
// source image and returns the backend's job id. An empty job id with
// a nil error means the backend rejected the request in-band; the raw
// response is returned for the model to see.
func (c *Client) StartImageGeneration(ctx context.Context, token, imageURL string) (string, map[string]any, error) {
	var result map[string]any
	err := c.doJSON(ctx, http.MethodPost, "/ocr/generate_ai_images/", token, map[string]any{
		"image_url":       imageURL,
		"generation_type": "both",
	}, &result)
	if err != nil {
		return "", nil, err
	}

	jobID, _ := result["job_id"].(string)
	return jobID, result, nil
}

// CheckImageJob fetches the status of an image generation job.
func (c *Client) CheckImageJob(ctx context.Context, token, jobID string) (*JobStatus, error) {
	var status JobStatus
	if err := c.getJSON(ctx, "/ocr/check_status/"+jobID+"/", token, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
