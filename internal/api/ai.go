package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

type generateRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// GeneratedCode is the result of a non-streaming AI generation.
type GeneratedCode struct {
	Content string `json:"content"`
}

// GenerateCode runs a one-shot AI generation for the given code slot type
// ("generator" or "standard"). The streaming variant lives in the ai package.
func (c *Client) GenerateCode(ctx context.Context, typ, sessionID string) (*GeneratedCode, error) {
	u, err := c.endpoint("ai", "generate")
	if err != nil {
		return nil, err
	}
	var out GeneratedCode
	if err := c.do(ctx, http.MethodPost, u, generateRequest{Type: typ, SessionID: sessionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ocrResponse struct {
	Text string `json:"text"`
}

// OCR uploads an image and returns the recognized text.
func (c *Client) OCR(ctx context.Context, filename string, image io.Reader) (string, error) {
	u, err := c.endpoint("ai", "ocr")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return "", fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out ocrResponse
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}
