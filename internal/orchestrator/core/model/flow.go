package model

import "time"

// Flow actions understood by WSN nodes.
const (
	FlowActionDrop    = 0
	FlowActionForward = 1
)

// Node types reported by the controller.
const (
	NodeTypeSensor       = "sensor"
	NodeTypeBorderRouter = "border-router"
)

// Flow is a forwarding rule installed on one WSN node.
type Flow struct {
	NodeID      int    `json:"nodeId"`
	SrcAddr     int    `json:"srcAddr"`
	DstAddr     int    `json:"dstAddr"`
	Action      int    `json:"action"`
	NextHop     int    `json:"nextHop"`
	Description string `json:"description,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// Node is a WSN node as reported by the controller.
type Node struct {
	NodeID    int     `json:"nodeId"`
	Type      string  `json:"type"`
	Active    bool    `json:"active"`
	Battery   float64 `json:"battery"`
	LastSeen  int64   `json:"lastSeen"`
	FlowCount int     `json:"flowCount"`
}

// NodeStats are the counters the controller keeps per node.
type NodeStats struct {
	NodeID          int     `json:"nodeId"`
	Battery         float64 `json:"battery"`
	PacketsSent     int64   `json:"packetsSent"`
	PacketsReceived int64   `json:"packetsReceived"`
	LastSeen        int64   `json:"lastSeen"`
}

// FlowPlan is a named set of flows generated from an intent.
type FlowPlan struct {
	ID        string    `json:"plan_id"`
	Intent    string    `json:"intent,omitempty"`
	Flows     []Flow    `json:"flows"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InstallResult is the controller answer for one flow. Status is
// "success" or "error".
type InstallResult struct {
	NodeID  int    `json:"node_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	FlowID  string `json:"flow_id,omitempty"`
}

// Install result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// FlowExecution is one install run of a set of flows.
type FlowExecution struct {
	ExecutionID    string          `json:"execution_id"`
	PlanID         string          `json:"plan_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Flows          int             `json:"flows"`
	FlowsInstalled int             `json:"flows_installed"`
	Results        []InstallResult `json:"results"`
}
