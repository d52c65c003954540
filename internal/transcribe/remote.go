package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var httpClient = &http.Client{Timeout: 10 * time.Minute}

// RemoteBackend posts audio to a whisper-server style HTTP endpoint
// (POST <host>/inference, multipart file upload, verbose JSON response).
// An alternative to the local backend for hosts without a GPU.
type RemoteBackend struct {
	host  string
	model string
}

func NewRemoteBackend(host, model string) *RemoteBackend {
	return &RemoteBackend{host: strings.TrimRight(host, "/"), model: model}
}

type remoteResp struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (r *RemoteBackend) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("model", r.model)
	w.WriteField("response_format", "verbose_json")
	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var resp remoteResp
	if err := doJSON(ctx, r.host+"/inference", w.FormDataContentType(), body.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("remote transcribe: %w", err)
	}

	tr := &Transcript{Language: resp.Language}
	for _, s := range resp.Segments {
		tr.Segments = append(tr.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return tr, nil
}

// doJSON posts the payload with bounded exponential backoff on transport
// errors and 5xx responses. The request is rebuilt per attempt so the body
// survives retries.
func doJSON(ctx context.Context, url, contentType string, payload []byte, target interface{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(body))
			return lastErr
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v", err)
			return backoff.Permanent(lastErr)
		}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
