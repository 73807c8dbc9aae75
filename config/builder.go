package config

import (
	"bytes"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"
)

// BuildSites returns the probe plan of cfg: a copy of its sites with unique
// ids and display names assigned and every grid expanded into endpoints.
//
// Ids are assigned in configuration order, so collisions resolve the same
// way on every cycle: the second "api" becomes "api-2", the third "api-3".
// cfg is not modified.
func BuildSites(cfg *Config) ([]SiteConfig, error) {
	sites := make([]SiteConfig, 0, len(cfg.Sites))
	siteIDs := make(map[string]struct{}, len(cfg.Sites))

	for _, sc := range cfg.Sites {
		site := sc
		site.ID = uniqueID(deriveID(sc.ID, sc.Name, "site"), siteIDs)
		site.Name = deriveName(sc.Name, site.ID)
		site.Grids = nil

		endpoints := slices.Clone(sc.Endpoints)
		for _, gc := range sc.Grids {
			gridEndpoints, err := buildGridEndpoints(gc)
			if err != nil {
				return nil, fmt.Errorf("site (%s): %w", site.Name, err)
			}
			endpoints = append(endpoints, gridEndpoints...)
		}

		endpointIDs := make(map[string]struct{}, len(endpoints))
		for i := range endpoints {
			ep := &endpoints[i]
			ep.ID = uniqueID(deriveID(ep.ID, ep.Name, "endpoint"), endpointIDs)
			ep.Name = deriveName(ep.Name, ep.ID)
		}
		site.Endpoints = endpoints

		sites = append(sites, site)
	}

	return sites, nil
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// Handlize turns a display name into an identifier: lowercase, every
// character outside [a-z0-9] collapsed into single dashes, no leading or
// trailing dash.
func Handlize(s string) string {
	return strings.Join(strings.Fields(nonAlphanumeric.ReplaceAllString(strings.ToLower(s), " ")), "-")
}

func deriveID(id, name, fallback string) string {
	if id != "" {
		return id
	}
	if h := Handlize(name); h != "" {
		return h
	}
	return fallback
}

func deriveName(name, id string) string {
	if name != "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(id)
	return string(unicode.ToUpper(r)) + id[size:]
}

func uniqueID(id string, taken map[string]struct{}) string {
	candidate := id
	for n := 2; ; n++ {
		if _, exists := taken[candidate]; !exists {
			break
		}
		candidate = id + "-" + strconv.Itoa(n)
	}
	taken[candidate] = struct{}{}
	return candidate
}

// validateGridTemplate parses the template and checks every dimension has
// distinct values, failing fast before any cycle tries to expand it.
func validateGridTemplate(where, urlTemplate string, dimensions map[string][]string) error {
	if _, err := template.New("").Parse(urlTemplate); err != nil {
		return fmt.Errorf("%s: invalid url_template: %w", where, err)
	}

	if len(dimensions) == 0 {
		return fmt.Errorf("%s: at least one dimension is required", where)
	}
	for _, dimName := range slices.Sorted(maps.Keys(dimensions)) {
		dimValues := dimensions[dimName]
		if len(dimValues) == 0 {
			return fmt.Errorf("%s: dimension %q has no values", where, dimName)
		}
		seen := make(map[string]struct{}, len(dimValues))
		for _, v := range dimValues {
			if _, exists := seen[v]; exists {
				return fmt.Errorf("%s: dimension %q has duplicate value %q", where, dimName, v)
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}

// buildGridEndpoints expands a GridConfig into multiple endpoints via cartesian product.
func buildGridEndpoints(gc GridConfig) ([]EndpointConfig, error) {
	// use missingkey=error to fail fast on missing template variables
	tmpl, err := template.New("url").Option("missingkey=error").Parse(gc.URLTemplate)
	if err != nil {
		return nil, err
	}

	combinations := cartesianProduct(gc.Dimensions)

	endpoints := make([]EndpointConfig, 0, len(combinations))
	for _, combo := range combinations {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, combo); err != nil {
			return nil, fmt.Errorf("grid (%s) with dimensions %v: template execution failed: %w", gc.Name, combo, err)
		}
		url := buf.String()
		if err := validateURL(url); err != nil {
			return nil, fmt.Errorf("grid (%s) with dimensions %v: %w", gc.Name, combo, err)
		}

		endpoints = append(endpoints, EndpointConfig{
			Name:        buildGridName(gc.Name, combo),
			URL:         url,
			Request:     gc.Request,
			MustFind:    gc.MustFind,
			MustNotFind: gc.MustNotFind,
			ValidStatus: gc.ValidStatus,
			Check:       gc.Check,
			Settings:    gc.Settings,
		})
	}

	return endpoints, nil
}

// buildGridName creates a display name for a grid endpoint.
func buildGridName(baseName string, combo map[string]string) string {
	name := baseName
	for _, k := range slices.Sorted(maps.Keys(combo)) {
		name += " " + combo[k]
	}
	return name
}

// cartesianProduct generates all combinations of dimension values.
func cartesianProduct(dimensions map[string][]string) []map[string]string {
	if len(dimensions) == 0 {
		return nil
	}

	// start with single empty combination
	result := []map[string]string{{}}

	for _, key := range slices.Sorted(maps.Keys(dimensions)) {
		var next []map[string]string
		for _, combo := range result {
			for _, val := range dimensions[key] {
				newCombo := maps.Clone(combo)
				newCombo[key] = val
				next = append(next, newCombo)
			}
		}
		result = next
	}

	return result
}
