package qwen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imroc/req"
	"github.com/massmux/QwenImageBot/internal/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusRunning   TaskStatus = "RUNNING"
	StatusSucceeded TaskStatus = "SUCCEEDED"
	StatusFailed    TaskStatus = "FAILED"
)

// GenerateRequest is one text-to-image job. Size uses the "WxH" form.
type GenerateRequest struct {
	APIKey         string
	Model          string
	Prompt         string
	NegativePrompt string
	Size           string
	PromptExtend   bool
}

type generationRequest struct {
	Model      string               `json:"model"`
	Input      generationInput      `json:"input"`
	Parameters generationParameters `json:"parameters"`
}

type generationInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type generationParameters struct {
	Size         string `json:"size"`
	N            int    `json:"n"`
	Watermark    bool   `json:"watermark"`
	PromptExtend bool   `json:"prompt_extend"`
}

// Task is the state of a remote job as reported by the task endpoint.
type Task struct {
	ID           string
	Status       TaskStatus
	URL          string
	ErrorCode    string
	ErrorMessage string
}

// Generate submits a job and blocks until it reaches a terminal state or the
// poll budget is exhausted. It returns the URL of the first result.
func (c *Client) Generate(ctx context.Context, r GenerateRequest) (string, error) {
	taskID, err := c.Submit(ctx, r)
	if err != nil {
		return "", err
	}
	return c.Wait(ctx, r.APIKey, taskID)
}

// Submit posts the job and returns the task id issued by the server.
func (c *Client) Submit(ctx context.Context, r GenerateRequest) (string, error) {
	payload := generationRequest{
		Model: r.Model,
		Input: generationInput{
			Prompt:         r.Prompt,
			NegativePrompt: strings.TrimSpace(r.NegativePrompt),
		},
		Parameters: generationParameters{
			Size:         strings.Replace(r.Size, "x", "*", 1),
			N:            1,
			Watermark:    false,
			PromptExtend: r.PromptExtend,
		},
	}
	header := jsonHeader(r.APIKey)
	header["X-DashScope-Async"] = "enable"

	log.Infof("[qwen] submitting task model=%s size=%s prompt_extend=%t", r.Model, payload.Parameters.Size, r.PromptExtend)
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()
	resp, err := c.req.Post(c.submitURL, header, req.BodyJSON(&payload), ctx)
	if err != nil {
		log.Errorf("[qwen] submit request failed: %v", err)
		return "", errors.New(errors.SubmitError, err)
	}
	body, err := resp.ToBytes()
	if err != nil {
		return "", errors.New(errors.SubmitError, err)
	}
	if status := resp.Response().StatusCode; status >= 300 {
		code, message := remoteError(body)
		log.Errorf("[qwen] submit status %d: %s", status, string(body))
		if code == "" && message == "" {
			return "", errors.New(errors.SubmitError, fmt.Errorf("http status %d", status))
		}
		return "", errors.Remotef(errors.SubmitError, code, message)
	}
	taskID := gjson.GetBytes(body, "output.task_id").String()
	if taskID == "" {
		log.Errorf("[qwen] no task id in response: %s", string(body))
		return "", errors.Create(errors.NoTaskIdError)
	}
	log.Infof("[qwen] task %s submitted", taskID)
	return taskID, nil
}

// Wait polls the task endpoint until the task succeeds or fails. Transport
// errors are retried and count against the same attempt budget.
func (c *Client) Wait(ctx context.Context, apiKey, taskID string) (string, error) {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		task, err := c.GetTask(ctx, apiKey, taskID)
		if err != nil {
			log.Warnf("[qwen] poll %s failed (attempt %d): %v", taskID, attempt+1, err)
		} else {
			switch task.Status {
			case StatusSucceeded:
				if task.URL == "" {
					log.Errorf("[qwen] task %s succeeded without image url", taskID)
					return "", errors.Create(errors.EmptyResultError)
				}
				log.Infof("[qwen] task %s succeeded: %s", taskID, task.URL)
				return task.URL, nil
			case StatusFailed:
				log.Errorf("[qwen] task %s failed: %s - %s", taskID, task.ErrorCode, task.ErrorMessage)
				return "", errors.TaskFailed(task.ErrorCode, task.ErrorMessage)
			case StatusPending, StatusRunning:
				if attempt%10 == 0 {
					log.Infof("[qwen] task %s %s (check %d)", taskID, task.Status, attempt+1)
				}
			default:
				log.Warnf("[qwen] task %s unknown status %q", taskID, task.Status)
			}
		}
		if attempt == c.pollAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	log.Errorf("[qwen] task %s poll timeout after %d attempts", taskID, c.pollAttempts)
	return "", errors.Create(errors.PollTimeoutError)
}

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, apiKey, taskID string) (Task, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()
	resp, err := c.req.Get(c.taskURL+taskID, authHeader(apiKey), ctx)
	if err != nil {
		return Task{}, err
	}
	body, err := resp.ToBytes()
	if err != nil {
		return Task{}, err
	}
	if status := resp.Response().StatusCode; status >= 300 {
		return Task{}, fmt.Errorf("http status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return parseTask(body), nil
}

func parseTask(body []byte) Task {
	output := gjson.GetBytes(body, "output")
	return Task{
		ID:           output.Get("task_id").String(),
		Status:       TaskStatus(output.Get("task_status").String()),
		URL:          output.Get("results.0.url").String(),
		ErrorCode:    valueOr(output.Get("error_code").String(), output.Get("code").String()),
		ErrorMessage: valueOr(output.Get("error_message").String(), output.Get("message").String()),
	}
}

func remoteError(body []byte) (code, message string) {
	return gjson.GetBytes(body, "code").String(), gjson.GetBytes(body, "message").String()
}

func valueOr(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
