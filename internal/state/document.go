package state

import (
	"encoding/json"
	"fmt"

	"github.com/guregu/null/v5"
)

// Entry is one log entry: the result of a single completed check.
//
// Times are milliseconds. Optional fields are omitted from JSON when unset.
type Entry struct {
	// T is the capture time in Unix milliseconds.
	T int64 `json:"t"`

	Dur         float64     `json:"dur"`
	DNS         null.Float  `json:"dns,omitzero"`
	TCP         null.Float  `json:"tcp,omitzero"`
	TTFB        null.Float  `json:"ttfb,omitzero"`
	DLL         null.Float  `json:"dll,omitzero"`
	ContentHash null.String `json:"contentHash,omitzero"`

	// Err is set when the check failed.
	Err null.String `json:"err,omitzero"`
}

// Failed reports whether the entry records an error.
func (e Entry) Failed() bool {
	return e.Err.Valid
}

// Document is the persisted status document read by the dashboard.
type Document struct {
	Sites     map[string]*Site `json:"sites"`
	Config    DisplayConfig    `json:"config"`
	UI        []UIGroup        `json:"ui"`
	LastPulse int64            `json:"lastPulse,omitempty"`
}

// Site is the persisted state of one site.
type Site struct {
	Name      string               `json:"name"`
	Endpoints map[string]*Endpoint `json:"endpoints"`
}

// Endpoint is the persisted state of one endpoint.
type Endpoint struct {
	Name string  `json:"name"`
	Link string  `json:"link,omitempty"`
	Logs []Entry `json:"logs"`
}

// DisplayConfig is the snapshot of global settings the dashboard renders with.
type DisplayConfig struct {
	// Interval is the pulse interval in minutes.
	Interval            float64 `json:"interval"`
	NDataPoints         int     `json:"nDataPoints"`
	ResponseTimeGood    int64   `json:"responseTimeGood"`
	ResponseTimeWarning int64   `json:"responseTimeWarning"`
}

// UIGroup orders one site's endpoints for display. It serializes as
// [siteId, [endpointId, ...]].
type UIGroup struct {
	SiteID      string
	EndpointIDs []string
}

// MarshalJSON implements json.Marshaler for UIGroup.
func (g UIGroup) MarshalJSON() ([]byte, error) {
	ids := g.EndpointIDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal([]any{g.SiteID, ids})
}

// UnmarshalJSON implements json.Unmarshaler for UIGroup.
func (g *UIGroup) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("ui group must have 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &g.SiteID); err != nil {
		return fmt.Errorf("ui group site id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &g.EndpointIDs); err != nil {
		return fmt.Errorf("ui group endpoint ids: %w", err)
	}
	return nil
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Sites: make(map[string]*Site), UI: []UIGroup{}}
}

// repair fills in maps and slices missing from a decoded document.
func (d *Document) repair() {
	if d.Sites == nil {
		d.Sites = make(map[string]*Site)
	}
	if d.UI == nil {
		d.UI = []UIGroup{}
	}
	for id, site := range d.Sites {
		if site == nil {
			site = &Site{}
			d.Sites[id] = site
		}
		if site.Endpoints == nil {
			site.Endpoints = make(map[string]*Endpoint)
		}
		for epID, ep := range site.Endpoints {
			if ep == nil {
				ep = &Endpoint{}
				site.Endpoints[epID] = ep
			}
			if ep.Logs == nil {
				ep.Logs = []Entry{}
			}
		}
	}
}

// endpoint returns the endpoint for ref, creating the site and endpoint maps as needed.
func (d *Document) endpoint(ref Ref) *Endpoint {
	site, ok := d.Sites[ref.SiteID]
	if !ok {
		site = &Site{Endpoints: make(map[string]*Endpoint)}
		d.Sites[ref.SiteID] = site
	}
	if ref.SiteName != "" {
		site.Name = ref.SiteName
	}

	ep, ok := site.Endpoints[ref.EndpointID]
	if !ok {
		ep = &Endpoint{Logs: []Entry{}}
		site.Endpoints[ref.EndpointID] = ep
	}
	return ep
}
