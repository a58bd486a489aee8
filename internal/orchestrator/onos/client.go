package onos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/pkg/log"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

const (
	apiPrefix    = "/onos/wisesdn/api"
	maxBodyBytes = 1 << 20
)

var _ core.FlowController = (*Client)(nil)

// Client talks to the wisesdn application running inside ONOS.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   log.Logger
}

// NewClient returns a REST client for the controller at opts.URL.
func NewClient(opts *options.OnosOptions) *Client {
	return &Client{
		baseURL:  strings.TrimRight(opts.URL, "/") + apiPrefix,
		username: opts.Username,
		password: opts.Password,
		http:     &http.Client{Timeout: opts.Timeout},
		logger:   log.WithName("onos"),
	}
}

// InstallFlow pushes one flow rule. Failures are reported in the result.
func (c *Client) InstallFlow(ctx context.Context, flow model.Flow) model.InstallResult {
	result := model.InstallResult{NodeID: flow.NodeID, Status: model.StatusError}

	var resp struct {
		Status  string `json:"status"`
		FlowID  string `json:"flowId"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/flows", flow, &resp); err != nil {
		c.logger.Warn("Flow install failed", "node", flow.NodeID, "error", err.Error())
		result.Message = err.Error()
		return result
	}

	result.FlowID = resp.FlowID
	result.Message = resp.Message
	if resp.Status == "" || resp.Status == model.StatusSuccess {
		result.Status = model.StatusSuccess
	}
	if result.Message == "" {
		result.Message = "Flow installed"
	}
	return result
}

// Topology returns the controller's topology document as is.
func (c *Client) Topology(ctx context.Context) (map[string]any, error) {
	topology := map[string]any{}
	if err := c.do(ctx, http.MethodGet, "/topology", nil, &topology); err != nil {
		return nil, err
	}
	return topology, nil
}

// Nodes lists the WSN nodes known to the controller.
func (c *Client) Nodes(ctx context.Context) ([]model.Node, error) {
	var nodes []model.Node
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Flows lists the rules installed on one node.
func (c *Client) Flows(ctx context.Context, nodeID int) ([]model.Flow, error) {
	var resp struct {
		Flows []model.Flow `json:"flows"`
	}
	if err := c.do(ctx, http.MethodGet, "/flows/"+strconv.Itoa(nodeID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Flows, nil
}

// NodeStats returns the counters of one node, or an ErrNotFound error.
func (c *Client) NodeStats(ctx context.Context, nodeID int) (*model.NodeStats, error) {
	stats := &model.NodeStats{}
	if err := c.do(ctx, http.MethodGet, "/stats/"+strconv.Itoa(nodeID), nil, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// StatusError is a non-2xx controller answer.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("controller returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return core.ErrNotFound
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("controller unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read controller response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode controller response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error"} or {"message"} from an error body.
func errorMessage(raw []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
