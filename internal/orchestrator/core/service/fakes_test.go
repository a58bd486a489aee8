package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRegistry struct {
	mu         sync.Mutex
	devices    []model.Device
	deployment *model.Deployment
	refreshes  int
	refreshErr error
}

func (r *fakeRegistry) FindDevice(id string) (*model.Device, bool) {
	for _, list := range [][]model.Device{r.devices, r.deploymentDevices()} {
		for i := range list {
			if list[i].ID == id {
				d := list[i]
				return &d, true
			}
		}
	}
	return nil, false
}

func (r *fakeRegistry) deploymentDevices() []model.Device {
	if r.deployment == nil {
		return nil
	}
	return r.deployment.Devices
}

func (r *fakeRegistry) Devices() []model.Device {
	return append([]model.Device(nil), r.devices...)
}

func (r *fakeRegistry) Deployment() *model.Deployment {
	if r.deployment == nil {
		return &model.Deployment{}
	}
	d := *r.deployment
	return &d
}

func (r *fakeRegistry) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
	return r.refreshErr
}

type fakePlans struct {
	plans map[string]model.Plan
	err   error
}

func (p *fakePlans) ListPlans(context.Context) ([]model.Plan, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]model.Plan, 0, len(p.plans))
	for _, plan := range p.plans {
		out = append(out, plan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *fakePlans) GetPlan(_ context.Context, id string) (*model.Plan, error) {
	if p.err != nil {
		return nil, p.err
	}
	plan, ok := p.plans[id]
	if !ok {
		return nil, core.NotFound("plan", id)
	}
	return plan.DeepCopy(), nil
}

type fakePolicies struct {
	security *model.SecurityPolicies
	access   model.AccessPolicies
	err      error
}

func (p *fakePolicies) SecurityPolicies(context.Context) (*model.SecurityPolicies, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.security == nil {
		return &model.SecurityPolicies{}, nil
	}
	return p.security, nil
}

func (p *fakePolicies) AccessPolicies(context.Context) (*model.AccessPolicies, error) {
	if p.err != nil {
		return nil, p.err
	}
	cp := p.access
	return &cp, nil
}

func (p *fakePolicies) UpdateAccessPolicies(_ context.Context, fn func(*model.AccessPolicies) error) error {
	if p.err != nil {
		return p.err
	}
	return fn(&p.access)
}

type fakeFlows struct {
	mu         sync.Mutex
	plans      map[string]model.FlowPlan
	executions []model.FlowExecution
}

func (f *fakeFlows) SaveFlowPlan(_ context.Context, plan *model.FlowPlan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.plans == nil {
		f.plans = map[string]model.FlowPlan{}
	}
	f.plans[plan.ID] = *plan
	return nil
}

func (f *fakeFlows) GetFlowPlan(_ context.Context, id string) (*model.FlowPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plans[id]
	if !ok {
		return nil, core.NotFound("flow plan", id)
	}
	return &p, nil
}

func (f *fakeFlows) ListFlowPlans(context.Context) ([]model.FlowPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.FlowPlan, 0, len(f.plans))
	for _, p := range f.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeFlows) AppendFlowExecution(_ context.Context, exec *model.FlowExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executions = append(f.executions, *exec)
	return nil
}

func (f *fakeFlows) ListFlowExecutions(context.Context) ([]model.FlowExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.FlowExecution, 0, len(f.executions))
	for i := len(f.executions) - 1; i >= 0; i-- {
		out = append(out, f.executions[i])
	}
	return out, nil
}

type fakeFirmware struct {
	cfg model.OTAServerConfig
	err error
}

func (f *fakeFirmware) OTAConfig(context.Context) (*model.OTAServerConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	cfg := f.cfg
	return &cfg, nil
}

type fakeRepo struct {
	registry *fakeRegistry
	plans    *fakePlans
	policies *fakePolicies
	flows    *fakeFlows
	firmware *fakeFirmware
}

func (r *fakeRepo) Registry() core.DeviceRegistry   { return r.registry }
func (r *fakeRepo) Plans() core.PlanRepository      { return r.plans }
func (r *fakeRepo) Policies() core.PolicyRepository { return r.policies }
func (r *fakeRepo) Flows() core.FlowRepository      { return r.flows }
func (r *fakeRepo) Firmware() core.FirmwareCatalog  { return r.firmware }

type fakeTransport struct {
	mu       sync.Mutex
	requests []core.DeviceRequest
	handle   func(req *core.DeviceRequest) (*core.DeviceResponse, error)
}

func (t *fakeTransport) Do(_ context.Context, req *core.DeviceRequest) (*core.DeviceResponse, error) {
	t.mu.Lock()
	t.requests = append(t.requests, *req)
	t.mu.Unlock()
	if t.handle == nil {
		return &core.DeviceResponse{StatusCode: 200, Body: map[string]any{"ok": true}, Attempts: 1}, nil
	}
	return t.handle(req)
}

func (t *fakeTransport) calls() []core.DeviceRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]core.DeviceRequest(nil), t.requests...)
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) CommandTopic(deviceID, service string) string {
	return fmt.Sprintf("%s/%s/command", deviceID, service)
}

type fakeStorage struct {
	keys []string
	err  error
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "https://minio.local/firmware/" + key + "?sig=abc", nil
}

func (s *fakeStorage) CheckBucket(context.Context) error { return s.err }

type verifierFunc func(ref, sig string) bool

func (f verifierFunc) Verify(ref, sig string) bool { return f(ref, sig) }

var acceptAll = verifierFunc(func(string, string) bool { return true })

type memHistory struct {
	mu      sync.Mutex
	records []*model.ExecutionRecord
}

func (h *memHistory) Append(_ context.Context, rec *model.ExecutionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	return nil
}

func (h *memHistory) List(context.Context) ([]*model.ExecutionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*model.ExecutionRecord, 0, len(h.records))
	for i := len(h.records) - 1; i >= 0; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}

type fakeController struct {
	mu        sync.Mutex
	nodes     []model.Node
	nodesErr  error
	topology  map[string]any
	flows     map[int][]model.Flow
	stats     map[int]*model.NodeStats
	installed []model.Flow
	// failNodes makes InstallFlow report an error for these node ids.
	failNodes map[int]bool
}

func (c *fakeController) InstallFlow(_ context.Context, flow model.Flow) model.InstallResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNodes[flow.NodeID] {
		return model.InstallResult{NodeID: flow.NodeID, Status: model.StatusError, Message: "controller rejected flow"}
	}
	c.installed = append(c.installed, flow)
	return model.InstallResult{NodeID: flow.NodeID, Status: model.StatusSuccess, FlowID: fmt.Sprintf("flow-%d", flow.NodeID)}
}

func (c *fakeController) Topology(context.Context) (map[string]any, error) {
	return c.topology, nil
}

func (c *fakeController) Nodes(context.Context) ([]model.Node, error) {
	return c.nodes, c.nodesErr
}

func (c *fakeController) Flows(_ context.Context, nodeID int) ([]model.Flow, error) {
	return c.flows[nodeID], nil
}

func (c *fakeController) NodeStats(_ context.Context, nodeID int) (*model.NodeStats, error) {
	s, ok := c.stats[nodeID]
	if !ok {
		return nil, errors.New("no stats")
	}
	return s, nil
}

// harness bundles a service with the fakes behind it.
type harness struct {
	svc        *Service
	registry   *fakeRegistry
	plans      *fakePlans
	policies   *fakePolicies
	flows      *fakeFlows
	firmware   *fakeFirmware
	transport  *fakeTransport
	publisher  *fakePublisher
	storage    *fakeStorage
	controller *fakeController
	history    *memHistory
}

func newHarness(t *testing.T, devices ...model.Device) *harness {
	t.Helper()
	h := &harness{
		registry:   &fakeRegistry{devices: devices},
		plans:      &fakePlans{plans: map[string]model.Plan{}},
		policies:   &fakePolicies{},
		flows:      &fakeFlows{},
		firmware:   &fakeFirmware{cfg: model.OTAServerConfig{LatestVersion: "1.0.0"}},
		transport:  &fakeTransport{},
		publisher:  &fakePublisher{},
		storage:    &fakeStorage{},
		controller: &fakeController{},
		history:    &memHistory{},
	}
	repo := &fakeRepo{
		registry: h.registry,
		plans:    h.plans,
		policies: h.policies,
		flows:    h.flows,
		firmware: h.firmware,
	}
	h.svc = New(repo, Ports{
		Transport:  h.transport,
		Publisher:  h.publisher,
		Storage:    h.storage,
		Verifier:   acceptAll,
		Controller: h.controller,
		History:    h.history,
	}, Config{Concurrency: 4})
	h.svc.now = func() time.Time { return testNow }
	return h
}

func battery(v float64) *float64 { return &v }

func camera(id, area string) model.Device {
	return model.Device{
		ID:       id,
		Type:     model.DeviceTypeCamera,
		IP:       "10.0.0." + id[len(id)-1:],
		Location: model.Location{Area: area},
		Status:   "active",
		Services: []model.Service{
			{Name: "motion", Protocol: model.ProtocolHTTP},
			{Name: "camera", Protocol: model.ProtocolHTTP, Details: model.Details{"resolution": "1920x1080", "fps": 30.0}},
		},
	}
}

func sensor(id, area string) model.Device {
	return model.Device{
		ID:       id,
		Type:     model.DeviceTypeSensor,
		Location: model.Location{Area: area},
		Status:   "active",
		Services: []model.Service{
			{Name: "temperature", Protocol: model.ProtocolMQTT, Details: model.Details{"sampling_frequency": 60.0}},
		},
	}
}
