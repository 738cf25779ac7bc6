package core

// PmKind is the tag of the PmTaskLink sum type.
type PmKind string

const (
	PmNone     PmKind = "none"
	PmAsana    PmKind = "asana"
	PmNotion   PmKind = "notion"
	PmClickUp  PmKind = "clickup"
	PmAirtable PmKind = "airtable"
	PmLinear   PmKind = "linear"
)

// StatusPayload is the shape shared by every provider-specific status
// payload: an id, a human name, an optional URL, the raw status-name
// string, and whether this item is a subtask. The per-provider aliases
// below exist only to keep JSON field names self-describing in the
// persisted session file; all of them are structurally StatusPayload.
type StatusPayload = statusPayload

type statusPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	StatusName string `json:"status_name"`
	IsSubtask  bool   `json:"is_subtask,omitempty"`
}

type (
	AsanaStatusPayload    = statusPayload
	NotionStatusPayload   = statusPayload
	ClickUpStatusPayload  = statusPayload
	AirtableStatusPayload = statusPayload
	LinearStatusPayload   = statusPayload
)

// PmTaskLink is a tagged variant over provider-specific payloads (spec §3).
// Only the field matching Kind is populated; the others are nil.
type PmTaskLink struct {
	Kind     PmKind                 `json:"kind"`
	Asana    *AsanaStatusPayload    `json:"asana,omitempty"`
	Notion   *NotionStatusPayload   `json:"notion,omitempty"`
	ClickUp  *ClickUpStatusPayload  `json:"clickup,omitempty"`
	Airtable *AirtableStatusPayload `json:"airtable,omitempty"`
	Linear   *LinearStatusPayload   `json:"linear,omitempty"`
}

// Clone returns a copy whose payload pointer (if any) is duplicated.
func (l PmTaskLink) Clone() PmTaskLink {
	out := PmTaskLink{Kind: l.Kind}
	dup := func(p *statusPayload) *statusPayload {
		if p == nil {
			return nil
		}
		c := *p
		return &c
	}
	out.Asana = dup(l.Asana)
	out.Notion = dup(l.Notion)
	out.ClickUp = dup(l.ClickUp)
	out.Airtable = dup(l.Airtable)
	out.Linear = dup(l.Linear)
	return out
}

// IsLinked reports whether the link carries an actual provider item.
func (l PmTaskLink) IsLinked() bool {
	return l.Kind != PmNone && l.Kind != ""
}

// Payload returns the active provider payload, or nil if unlinked. Callers
// needing provider-specific fields should switch on Kind first.
func (l PmTaskLink) Payload() *statusPayload {
	switch l.Kind {
	case PmAsana:
		return l.Asana
	case PmNotion:
		return l.Notion
	case PmClickUp:
		return l.ClickUp
	case PmAirtable:
		return l.Airtable
	case PmLinear:
		return l.Linear
	default:
		return nil
	}
}

// FormatShort renders a compact "name (status)" label, or "" when unlinked.
func (l PmTaskLink) FormatShort() string {
	p := l.Payload()
	if p == nil {
		return ""
	}
	if p.StatusName == "" {
		return p.Name
	}
	return p.Name + " (" + p.StatusName + ")"
}

// StatusOption is one selectable status value for a PM task, as returned by
// a provider's get_statuses() operation.
type StatusOption struct {
	ID   string
	Name string
}

// PmTaskSummary is one task/item as listed by a PM provider's ListTasks
// operation, uniform across Asana/Notion/ClickUp/Airtable/Linear.
type PmTaskSummary struct {
	ID          string
	Name        string
	URL         string
	StatusName  string
	Completed   bool
	NumChildren int
	ParentID    string
	IsSubtask   bool
}

// ForgeStatus is the per-forge MR/PR status for the agent's branch. It is
// transient: recomputed every forge-refresh tick, never persisted.
type ForgeStatus struct {
	Provider string
	Number   int
	State    string // "open" | "merged" | "closed"
	URL      string
	PipelineState string // "", "pending", "running", "success", "failed"
}
