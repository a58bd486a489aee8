package store

import (
	"context"
	"slices"
	"sort"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

const (
	PlansFile            = "orchestration_plans.json"
	SecurityPoliciesFile = "security_policies.json"
	AccessPoliciesFile   = "access_policies.json"
	FlowPlansFile        = "flow_plans.json"
	FlowHistoryFile      = "flow_history.json"
	OTAConfigFile        = "ota_server_config.json"
)

var _ core.Repository = (*Store)(nil)

// Store serves every document of the data directory.
type Store struct {
	docs     *Documents
	registry *Registry
}

// New returns a Store over docs using registry for device lookups.
func New(docs *Documents, registry *Registry) *Store {
	return &Store{docs: docs, registry: registry}
}

func (s *Store) Registry() core.DeviceRegistry  { return s.registry }
func (s *Store) Plans() core.PlanRepository      { return (*planRepo)(s) }
func (s *Store) Policies() core.PolicyRepository { return (*policyRepo)(s) }
func (s *Store) Flows() core.FlowRepository      { return (*flowRepo)(s) }
func (s *Store) Firmware() core.FirmwareCatalog  { return (*firmwareRepo)(s) }

type planRepo Store

type plansDocument struct {
	Plans []model.Plan `json:"orchestration_plans"`
}

func (r *planRepo) ListPlans(ctx context.Context) ([]model.Plan, error) {
	var doc plansDocument
	if _, err := r.docs.Read(PlansFile, &doc); err != nil {
		return nil, err
	}
	return doc.Plans, nil
}

func (r *planRepo) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	plans, err := r.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].ID == id {
			return &plans[i], nil
		}
	}
	return nil, core.NotFound("plan", id)
}

type policyRepo Store

func (r *policyRepo) SecurityPolicies(ctx context.Context) (*model.SecurityPolicies, error) {
	p := &model.SecurityPolicies{}
	if _, err := r.docs.Read(SecurityPoliciesFile, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *policyRepo) AccessPolicies(ctx context.Context) (*model.AccessPolicies, error) {
	p := &model.AccessPolicies{}
	if _, err := r.docs.Read(AccessPoliciesFile, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *policyRepo) UpdateAccessPolicies(ctx context.Context, fn func(*model.AccessPolicies) error) error {
	p := &model.AccessPolicies{}
	return r.docs.Update(AccessPoliciesFile, p, func() error { return fn(p) })
}

type flowRepo Store

func (r *flowRepo) SaveFlowPlan(ctx context.Context, plan *model.FlowPlan) error {
	plans := map[string]model.FlowPlan{}
	return r.docs.Update(FlowPlansFile, &plans, func() error {
		plans[plan.ID] = *plan
		return nil
	})
}

func (r *flowRepo) GetFlowPlan(ctx context.Context, id string) (*model.FlowPlan, error) {
	plans := map[string]model.FlowPlan{}
	if _, err := r.docs.Read(FlowPlansFile, &plans); err != nil {
		return nil, err
	}
	p, ok := plans[id]
	if !ok {
		return nil, core.NotFound("flow plan", id)
	}
	return &p, nil
}

// ListFlowPlans returns the saved plans ordered by id.
func (r *flowRepo) ListFlowPlans(ctx context.Context) ([]model.FlowPlan, error) {
	plans := map[string]model.FlowPlan{}
	if _, err := r.docs.Read(FlowPlansFile, &plans); err != nil {
		return nil, err
	}
	out := make([]model.FlowPlan, 0, len(plans))
	for id, p := range plans {
		if p.ID == "" {
			p.ID = id
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *flowRepo) AppendFlowExecution(ctx context.Context, exec *model.FlowExecution) error {
	var history []model.FlowExecution
	return r.docs.Update(FlowHistoryFile, &history, func() error {
		history = append(history, *exec)
		if over := len(history) - MaxHistory; over > 0 {
			history = history[over:]
		}
		return nil
	})
}

// ListFlowExecutions returns recorded flow installs, newest first.
func (r *flowRepo) ListFlowExecutions(ctx context.Context) ([]model.FlowExecution, error) {
	var history []model.FlowExecution
	if _, err := r.docs.Read(FlowHistoryFile, &history); err != nil {
		return nil, err
	}
	slices.Reverse(history)
	return history, nil
}

type firmwareRepo Store

// OTAConfig returns the firmware catalog, defaulting the latest version.
func (r *firmwareRepo) OTAConfig(ctx context.Context) (*model.OTAServerConfig, error) {
	cfg := &model.OTAServerConfig{}
	if _, err := r.docs.Read(OTAConfigFile, cfg); err != nil {
		return nil, err
	}
	if cfg.LatestVersion == "" {
		cfg.LatestVersion = model.DefaultFirmwareVersion
	}
	return cfg, nil
}
