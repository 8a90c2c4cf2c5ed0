package risk

import (
	"math"
	"sort"
)

// DefaultWeight is charged for any permission the weight table does not know,
// so new or unrecognised permissions are never scored as free.
const DefaultWeight = 5

// Annotation explains why a permission is considered sensitive.
type Annotation struct {
	Permission  string `json:"permission" yaml:"-"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description" yaml:"description"`
}

// Table holds the permission weights and the curated annotations.
// A Table is never modified after construction and may be shared freely.
type Table struct {
	defaultWeight int
	weights       map[string]int
	annotations   map[string]Annotation
}

// builtinWeights are relative risk points per permission.
var builtinWeights = map[string]int{
	"scripting":          30,
	"tabs":               20,
	"webRequest":         20,
	"webRequestBlocking": 25,
	"activeTab":          10,
	"clipboardWrite":     10,
	"clipboardRead":      10,
	"storage":            5,
	"unlimitedStorage":   10,
	"contextMenus":       5,
	"sidePanel":          0,
	"alarms":             3,
	"offscreen":          3,
}

// builtinAnnotations is deliberately curated rather than exhaustive and is
// independent of builtinWeights.
var builtinAnnotations = map[string]Annotation{
	"webRequest": {
		URL: "https://developer.chrome.com/docs/extensions/reference/webRequest/",
		Description: "Allows the extension to observe and analyze traffic, intercept, block, or modify requests in-flight. " +
			"This could be used to steal sensitive data or inject malicious content into web pages.",
	},
	"activeTab": {
		URL: "https://developer.chrome.com/docs/extensions/develop/concepts/activeTab?hl=en",
		Description: "Grants temporary access to the content of the active tab. " +
			"This could be exploited to read sensitive information from the current webpage.",
	},
	"scripting": {
		URL: "https://developer.chrome.com/docs/extensions/reference/scripting/",
		Description: "Allows the extension to inject JavaScript or CSS into web pages. " +
			"This could be used to manipulate web content or execute malicious scripts.",
	},
	"tabs": {
		URL: "https://developer.chrome.com/docs/extensions/reference/tabs/",
		Description: "Provides access to browser tabs, including their URLs and titles. " +
			"This could be used to track browsing activity or gather sensitive information.",
	},
}

var defaultTable = NewTable(DefaultWeight, builtinWeights, builtinAnnotations)

// DefaultTable returns the built-in table. It is initialised once per process.
func DefaultTable() *Table { return defaultTable }

// NewTable copies weights and annotations into a new immutable Table.
func NewTable(defaultWeight int, weights map[string]int, annotations map[string]Annotation) *Table {
	t := &Table{
		defaultWeight: defaultWeight,
		weights:       make(map[string]int, len(weights)),
		annotations:   make(map[string]Annotation, len(annotations)),
	}
	for k, v := range weights {
		t.weights[k] = v
	}
	for k, a := range annotations {
		a.Permission = k
		t.annotations[k] = a
	}
	return t
}

// Weight returns the weight of permission and whether the table knows it.
// Unknown permissions get the table's default weight.
func (t *Table) Weight(permission string) (int, bool) {
	if w, ok := t.weights[permission]; ok {
		return w, true
	}
	return t.defaultWeight, false
}

// DefaultWeight returns the weight charged for unknown permissions.
func (t *Table) DefaultWeight() int { return t.defaultWeight }

// Weights returns a copy of the known weights.
func (t *Table) Weights() map[string]int {
	out := make(map[string]int, len(t.weights))
	for k, v := range t.weights {
		out[k] = v
	}
	return out
}

// AnnotationFor looks up the annotation for an exact permission name.
// A false result means the permission has no special annotation; it is not an error.
func (t *Table) AnnotationFor(permission string) (Annotation, bool) {
	a, ok := t.annotations[permission]
	return a, ok
}

// Annotations returns every annotation sorted by permission name.
func (t *Table) Annotations() []Annotation {
	out := make([]Annotation, 0, len(t.annotations))
	for _, a := range t.annotations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permission < out[j].Permission })
	return out
}

// RawScore sums the weights of permissions. Repeated entries count each time.
func (t *Table) RawScore(permissions []string) int {
	total := 0
	for _, p := range permissions {
		w, _ := t.Weight(p)
		total += w
	}
	return total
}

// Score computes the rounded, host-scaled risk score.
func (t *Table) Score(permissions, hosts []string) int {
	return scale(t.RawScore(permissions), HostScopeMultiplier(hosts))
}

// scale applies the multiplier and rounds half-up.
func scale(raw int, multiplier float64) int {
	return int(math.Floor(float64(raw)*multiplier + 0.5))
}

// Score computes the risk score with the default table.
func Score(permissions, hosts []string) int {
	return defaultTable.Score(permissions, hosts)
}

// AnnotationFor looks up a permission in the default annotation table.
func AnnotationFor(permission string) (Annotation, bool) {
	return defaultTable.AnnotationFor(permission)
}
