package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/pkg/log"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

// maxResponseBytes bounds how much of a device answer is kept.
const maxResponseBytes = 1 << 20

var _ core.DeviceTransport = (*Client)(nil)

// errRetryableStatus marks a 5xx answer worth another attempt.
var errRetryableStatus = errors.New("retryable device status")

// Client calls device HTTP endpoints. Transport errors and 5xx answers are
// retried up to MaxRetries times with exponential backoff; timeouts are not.
type Client struct {
	http         *http.Client
	maxRetries   int
	retryBackoff time.Duration
	logger       log.Logger
}

// NewClient builds a device client from the executor options.
func NewClient(opts *options.ExecutorOptions) *Client {
	return &Client{
		http:         &http.Client{},
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		logger:       log.WithName("device-client"),
	}
}

// Do performs req and reports the number of attempts in the response.
func (c *Client) Do(ctx context.Context, req *core.DeviceRequest) (*core.DeviceResponse, error) {
	attempts := 0
	var last *core.DeviceResponse

	operation := func() (*core.DeviceResponse, error) {
		attempts++
		resp, err := c.once(ctx, req)
		if err != nil {
			if errors.Is(err, core.ErrDeviceTimeout) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			c.logger.Debug("Device request failed", "url", req.URL, "attempt", attempts, "error", err.Error())
			return nil, err
		}
		last = resp
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, errRetryableStatus
		}
		return resp, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)

	if err != nil && !errors.Is(err, errRetryableStatus) {
		return &core.DeviceResponse{Attempts: attempts}, err
	}
	last.Attempts = attempts
	return last, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	if c.maxRetries <= 0 || c.retryBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBackoff
	bo.MaxInterval = 5 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	return bo
}

func (c *Client) once(ctx context.Context, req *core.DeviceRequest) (*core.DeviceResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("encode request body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	if len(req.Query) > 0 {
		httpReq.URL.RawQuery = req.Query.Encode()
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %dms", core.ErrDeviceTimeout, req.Timeout.Milliseconds())
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %dms", core.ErrDeviceTimeout, req.Timeout.Milliseconds())
		}
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &core.DeviceResponse{StatusCode: resp.StatusCode, Text: string(raw)}
	var decoded any
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		out.Body = decoded
	} else {
		out.Body = string(raw)
	}
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
