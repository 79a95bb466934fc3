package analyzer

import (
	"encoding/json"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/liip/sheriff"
	"github.com/pkg/errors"
)

// OutputVersion is the version of the JSON output format. Fields tagged
// with a later "since" version are omitted by older consumers.
const OutputVersion = "1.1.0"

// OutputGroups lists the accepted output groups, from least to most verbose.
var OutputGroups = []string{"short", "normal", "long"}

// ParseGroups splits a comma-separated group list and checks every entry.
// Empty input selects all groups.
func ParseGroups(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var groups []string
	for _, g := range strings.Split(s, ",") {
		g = strings.TrimSpace(g)
		known := false
		for _, og := range OutputGroups {
			if g == og {
				known = true
				break
			}
		}
		if !known {
			return nil, errors.Errorf("unknown output group %q, must be one of %s", g, strings.Join(OutputGroups, ", "))
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Filter returns v reduced to the fields of the given groups, ready to be
// encoded as JSON. No groups means all fields. apiVersion may be empty for
// OutputVersion.
func Filter(v interface{}, groups []string, apiVersion string) (interface{}, error) {
	if apiVersion == "" {
		apiVersion = OutputVersion
	}
	ver, err := version.NewVersion(apiVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "parse output version %q", apiVersion)
	}
	if len(groups) == 0 {
		groups = OutputGroups
	}
	o := &sheriff.Options{
		Groups:     groups,
		ApiVersion: ver,
	}
	data, err := sheriff.Marshal(o, v)
	if err != nil {
		return nil, errors.Wrap(err, "filter output")
	}
	return data, nil
}

// MarshalGroups is Filter followed by JSON encoding.
func MarshalGroups(v interface{}, groups []string) ([]byte, error) {
	data, err := Filter(v, groups, "")
	if err != nil {
		return nil, err
	}
	return json.Marshal(data)
}
