package schema

// NodeKind discriminates the node variants of a workflow graph.
type NodeKind string

const (
	NodeKindTrigger NodeKind = "trigger"
	NodeKindAction  NodeKind = "action"
)

// NodeStatus is the raw status of a node. Its legal domain depends on the
// node kind: triggers are online|offline, actions are online|error|offline.
type NodeStatus string

const (
	NodeStatusOnline  NodeStatus = "online"
	NodeStatusOffline NodeStatus = "offline"
	NodeStatusError   NodeStatus = "error"
)

// ValidFor reports whether the status belongs to the given kind's domain.
func (s NodeStatus) ValidFor(kind NodeKind) bool {
	switch kind {
	case NodeKindTrigger:
		return s == NodeStatusOnline || s == NodeStatusOffline
	case NodeKindAction:
		return s == NodeStatusOnline || s == NodeStatusOffline || s == NodeStatusError
	default:
		return false
	}
}

// Webhook is the workflow-level webhook summary.
type Webhook struct {
	ID            string     `json:"id,omitempty" yaml:"id,omitempty"`
	Status        NodeStatus `json:"status" yaml:"status"`
	Method        string     `json:"method,omitempty" yaml:"method,omitempty"`
	URL           string     `json:"url,omitempty" yaml:"url,omitempty"`
	EntrypointRef string     `json:"entrypoint_ref,omitempty" yaml:"entrypoint_ref,omitempty"`
}

// Schedule is one cron schedule attached to a workflow.
type Schedule struct {
	ID            string `json:"id" yaml:"id"`
	Cron          string `json:"cron" yaml:"cron"`
	EntrypointRef string `json:"entrypoint_ref,omitempty" yaml:"entrypoint_ref,omitempty"`
}

// Workflow holds the workflow-level aggregates that trigger nodes display.
type Workflow struct {
	Webhook   Webhook    `json:"webhook" yaml:"webhook"`
	Schedules []Schedule `json:"schedules" yaml:"schedules"`
}

// NodeDocument is the wire form of a node.
type NodeDocument struct {
	ID             string     `json:"id" yaml:"id"`
	Kind           NodeKind   `json:"kind" yaml:"kind"`
	Type           string     `json:"type" yaml:"type"`
	Title          string     `json:"title" yaml:"title"`
	Status         NodeStatus `json:"status" yaml:"status"`
	IsConfigured   bool       `json:"is_configured,omitempty" yaml:"is_configured,omitempty"`
	EntrypointID   string     `json:"entrypoint_id,omitempty" yaml:"entrypoint_id,omitempty"`
	NumberOfEvents int        `json:"number_of_events,omitempty" yaml:"number_of_events,omitempty"`
}

// EdgeDocument is the wire form of an edge. Empty handles mean the default
// handle of the required kind on that node.
type EdgeDocument struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Source       string `json:"source" yaml:"source"`
	SourceHandle string `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
	Target       string `json:"target" yaml:"target"`
	TargetHandle string `json:"target_handle,omitempty" yaml:"target_handle,omitempty"`
}

// GraphDocument is the serializable form of a workflow graph plus its
// workflow-level aggregates. Workflow is nil while aggregates are unloaded.
type GraphDocument struct {
	ID       string         `json:"id" yaml:"id"`
	Title    string         `json:"title,omitempty" yaml:"title,omitempty"`
	Nodes    []NodeDocument `json:"nodes" yaml:"nodes"`
	Edges    []EdgeDocument `json:"edges,omitempty" yaml:"edges,omitempty"`
	Workflow *Workflow      `json:"workflow,omitempty" yaml:"workflow,omitempty"`
}
