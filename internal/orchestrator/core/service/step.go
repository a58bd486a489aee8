package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/pkg/metrics"
)

// errPublisherUnavailable is reported for MQTT steps when no broker is configured.
var errPublisherUnavailable = errors.New("mqtt publisher unavailable")

// HTTPCommand is the wire form of an HTTP step.
type HTTPCommand struct {
	Method string
	URL    string
	Query  url.Values
	Body   map[string]any
}

// MQTTCommand is the wire form of an MQTT step.
type MQTTCommand struct {
	Topic   string
	Payload map[string]any
}

// TranslateHTTP maps a step to an HTTP call against the device. Activation and
// deactivation POST the parameters plus a command field, queries GET with the
// parameters as query string, everything else POSTs the parameters.
func TranslateHTTP(step *model.Step, device *model.Device, defaultPort int) HTTPCommand {
	scheme := "http"
	if strings.EqualFold(step.Protocol, "https") {
		scheme = "https"
	}
	port := defaultPort
	if device.Port > 0 {
		port = device.Port
	}
	if step.Port > 0 {
		port = step.Port
	}

	cmd := HTTPCommand{
		URL: fmt.Sprintf("%s://%s/%s", scheme, net.JoinHostPort(device.IP, strconv.Itoa(port)), step.Service),
	}

	switch step.Instruction {
	case model.InstructionActivate, model.InstructionDeactivate:
		cmd.Method = http.MethodPost
		command := "activate"
		if step.Instruction == model.InstructionDeactivate {
			command = "deactivate"
		}
		cmd.Body = map[string]any{"command": command}
		for k, v := range step.Parameters {
			cmd.Body[k] = v
		}
	case model.InstructionQuery:
		cmd.Method = http.MethodGet
		cmd.Query = url.Values{}
		for k, v := range step.Parameters {
			cmd.Query.Set(k, fmt.Sprint(v))
		}
	default:
		cmd.Method = http.MethodPost
		cmd.Body = map[string]any{}
		for k, v := range step.Parameters {
			cmd.Body[k] = v
		}
	}

	return cmd
}

// TranslateMQTT maps a step to a command publish.
func TranslateMQTT(step *model.Step, topic string, now time.Time) MQTTCommand {
	params := step.Parameters
	if params == nil {
		params = model.Parameters{}
	}
	return MQTTCommand{
		Topic: topic,
		Payload: map[string]any{
			"instruction": step.Instruction,
			"parameters":  params,
			"timestamp":   now.Format(time.RFC3339),
		},
	}
}

// ExecuteStep resolves the step's device and service and performs it. Every
// failure is captured in the returned result.
func (s *Service) ExecuteStep(ctx context.Context, index int, step *model.Step) model.StepResult {
	result := model.StepResult{
		StepID:      fmt.Sprintf("step-%d", index),
		StepIndex:   index,
		Instruction: step.Instruction,
		DeviceID:    step.DeviceID,
		Service:     step.Service,
	}

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		result.DurationMS = float64(elapsed.Microseconds()) / 1000
		protocol := strings.ToUpper(result.Protocol)
		if protocol == "" {
			protocol = "NONE"
		}
		metrics.StepResults.WithLabelValues(string(result.Status), protocol).Inc()
		metrics.StepDuration.WithLabelValues(protocol).Observe(elapsed.Seconds())
	}()

	device, ok := s.registry.FindDevice(step.DeviceID)
	if !ok {
		return fail(result, "device %s not found", step.DeviceID)
	}
	svc, ok := device.FindService(step.Service)
	if !ok {
		return fail(result, "service %s not found on device %s", step.Service, step.DeviceID)
	}

	protocol := svc.EffectiveProtocol()
	result.Protocol = string(protocol)

	switch {
	case protocol.IsHTTP():
		return s.executeHTTP(ctx, result, step, device)
	case protocol.IsMQTT():
		return s.executeMQTT(ctx, result, step)
	default:
		return fail(result, "unsupported protocol: %s", protocol)
	}
}

func (s *Service) executeHTTP(ctx context.Context, result model.StepResult, step *model.Step, device *model.Device) model.StepResult {
	if device.IP == "" {
		return fail(result, "device %s has no ip address", device.ID)
	}

	cmd := TranslateHTTP(step, device, s.cfg.DevicePort)
	result.Method = cmd.Method
	result.URL = cmd.URL

	req := &core.DeviceRequest{
		Method:  cmd.Method,
		URL:     cmd.URL,
		Query:   cmd.Query,
		Timeout: step.Timeout(),
	}
	if cmd.Body != nil {
		req.Body = cmd.Body
	}

	resp, err := s.transport.Do(ctx, req)
	if resp != nil {
		result.Attempts = resp.Attempts
	}
	if err != nil {
		if errors.Is(err, core.ErrDeviceTimeout) {
			result.Status = model.StepTimeout
			result.Error = fmt.Sprintf("request timeout after %dms", step.TimeoutMS)
			return result
		}
		return fail(result, "%s", err.Error())
	}

	result.ResponseCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(result, "HTTP %d: %s", resp.StatusCode, strings.TrimSpace(resp.Text))
	}

	result.Status = model.StepSuccess
	result.Response = resp.Body
	return result
}

func (s *Service) executeMQTT(ctx context.Context, result model.StepResult, step *model.Step) model.StepResult {
	if s.publisher == nil {
		return fail(result, "%s", errPublisherUnavailable.Error())
	}

	cmd := TranslateMQTT(step, s.publisher.CommandTopic(step.DeviceID, step.Service), s.now())
	result.Topic = cmd.Topic

	payload, err := json.Marshal(cmd.Payload)
	if err != nil {
		return fail(result, "encode command: %s", err.Error())
	}

	pubCtx, cancel := context.WithTimeout(ctx, step.Timeout())
	defer cancel()

	if err := s.publisher.Publish(pubCtx, cmd.Topic, payload); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			result.Status = model.StepTimeout
			result.Error = fmt.Sprintf("publish timeout after %dms", step.TimeoutMS)
			return result
		}
		return fail(result, "%s", err.Error())
	}

	result.Status = model.StepPublished
	result.Response = fmt.Sprintf("MQTT published to %s", cmd.Topic)
	return result
}

func fail(result model.StepResult, format string, args ...any) model.StepResult {
	result.Status = model.StepFailed
	result.Error = fmt.Sprintf(format, args...)
	return result
}
