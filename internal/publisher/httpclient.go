package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
	"github.com/ignite/social-scheduler/internal/pkg/poll"
)

// apiResponse is a read platform response.
type apiResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r apiResponse) ok() bool { return r.Status >= 200 && r.Status < 300 }

// do executes req and reads the full body. Transport errors are returned
// with access tokens scrubbed from the message.
func do(client *http.Client, req *http.Request) (apiResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("%s", logger.RedactQueryTokens(err.Error()))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("reading response: %w", err)
	}
	return apiResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func newJSONRequest(ctx context.Context, method, endpoint string, payload interface{}) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	return req, nil
}

// transportFailure maps a request error to a PostResult, distinguishing
// cancellation from network failures.
func transportFailure(ctx context.Context, step string, err error) domain.PostResult {
	if ctx.Err() != nil {
		return domain.Failed(fmt.Sprintf("%s cancelled: %v", step, ctx.Err()), domain.ErrCancelled)
	}
	return domain.Failed(fmt.Sprintf("%s: %v", step, err), domain.ErrHTTP)
}

// pollFailure maps a poll.Run error to a PostResult.
func pollFailure(step string, attempts int, err error) domain.PostResult {
	if poll.IsCancelled(err) {
		return domain.Failed(fmt.Sprintf("%s cancelled after %d attempts", step, attempts), domain.ErrCancelled)
	}
	return domain.Failed(fmt.Sprintf("%s timed out after %d attempts", step, attempts), domain.ErrTimeout)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
