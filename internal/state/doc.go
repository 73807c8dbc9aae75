// Package state owns the persisted status document and the streak counters
// of every probed endpoint.
//
// The document is the durable artifact read by the dashboard:
//
//	{
//	  "sites": {"<siteId>": {"name": "...", "endpoints": {"<endpointId>": {"name": "...", "link": "...", "logs": [...]}}}},
//	  "config": {"interval": 5, "nDataPoints": 90, "responseTimeGood": 3000, "responseTimeWarning": 60000},
//	  "ui": [["<siteId>", ["<endpointId>", ...]]],
//	  "lastPulse": 1700000000000
//	}
//
// It is stored in a gocloud.dev bucket, a local directory by default.
package state
