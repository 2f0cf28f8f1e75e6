package qwen

import (
	"context"
	"fmt"
	"strings"

	"github.com/massmux/QwenImageBot/internal/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type EditRequest struct {
	APIKey         string
	Model          string
	Prompt         string
	NegativePrompt string
	Image          ImageSource
}

type editContent map[string]string

type editMessage struct {
	Role    string        `json:"role"`
	Content []editContent `json:"content"`
}

// Edit sends the image and instruction in a single synchronous call. The
// result is whatever the service put in the image part, usually a URL.
func (c *Client) Edit(ctx context.Context, r EditRequest) (string, error) {
	data, err := c.Load(ctx, r.Image)
	if err != nil {
		return "", err
	}
	dataURI, err := EncodeDataURI(data, c.maxEdge)
	if err != nil {
		return "", err
	}
	body, err := editPayload(r, dataURI)
	if err != nil {
		return "", errors.New(errors.EditError, err)
	}

	log.Infof("[qwen] editing image model=%s (%d bytes)", r.Model, len(data))
	ctx, cancel := context.WithTimeout(ctx, c.editTimeout)
	defer cancel()
	resp, err := c.req.Post(c.editURL, jsonHeader(r.APIKey), []byte(body), ctx)
	if err != nil {
		log.Errorf("[qwen] edit request failed: %v", err)
		return "", errors.New(errors.EditError, err)
	}
	raw, err := resp.ToBytes()
	if err != nil {
		return "", errors.New(errors.EditError, err)
	}
	code, message := remoteError(raw)
	if status := resp.Response().StatusCode; status >= 300 || code != "" {
		log.Errorf("[qwen] edit status %d: %s", status, string(raw))
		if code == "" && message == "" {
			return "", errors.New(errors.EditError, fmt.Errorf("http status %d", status))
		}
		return "", errors.Remotef(errors.EditError, code, message)
	}
	image := firstImage(raw)
	if image == "" {
		log.Errorf("[qwen] edit response without image: %s", string(raw))
		return "", errors.Create(errors.EmptyResultError)
	}
	log.Infof("[qwen] image edited")
	return image, nil
}

func editPayload(r EditRequest, dataURI string) (string, error) {
	body, err := sjson.Set("", "model", r.Model)
	if err != nil {
		return "", err
	}
	messages := []editMessage{{
		Role:    "user",
		Content: []editContent{{"image": dataURI}, {"text": r.Prompt}},
	}}
	if body, err = sjson.Set(body, "input.messages", messages); err != nil {
		return "", err
	}
	if body, err = sjson.Set(body, "parameters.watermark", false); err != nil {
		return "", err
	}
	if negative := strings.TrimSpace(r.NegativePrompt); negative != "" {
		if body, err = sjson.Set(body, "parameters.negative_prompt", negative); err != nil {
			return "", err
		}
	}
	return body, nil
}

func firstImage(body []byte) string {
	var image string
	gjson.GetBytes(body, "output.choices.0.message.content").ForEach(func(_, part gjson.Result) bool {
		if v := strings.TrimSpace(part.Get("image").String()); v != "" {
			image = v
			return false
		}
		return true
	})
	return image
}
