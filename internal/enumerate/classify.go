package enumerate

import "strings"

// Kind is the object type derived from a permalink.
type Kind string

const (
	KindSheet     Kind = "sheet"
	KindFolder    Kind = "folder"
	KindDashboard Kind = "dashboard"
	KindWorkspace Kind = "workspace"
	KindReport    Kind = "report"
	KindUnknown   Kind = "unknown"
)

// classification of permalink path segments to object kinds. Dashboards
// appear under both /dashboards/ and the legacy /sights/ segment.
var segmentKinds = map[string]Kind{
	"sheets":     KindSheet,
	"folders":    KindFolder,
	"dashboards": KindDashboard,
	"sights":     KindDashboard,
	"workspaces": KindWorkspace,
	"reports":    KindReport,
}

// ClassifyPermalink derives an object kind from a permalink URL's path
// segments. The typed API child lists are the primary classification; this
// is the documented fallback for objects known only by URL (e.g. the
// intake sheet's folder-URL cell). URL string matching is inherently
// fragile; prefer ID lookups wherever an ID is available.
func ClassifyPermalink(permalink string) Kind {
	// Query strings and fragments are not part of the identity.
	trimmed := permalink
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}

	for _, segment := range strings.Split(trimmed, "/") {
		if kind, ok := segmentKinds[segment]; ok {
			return kind
		}
	}

	return KindUnknown
}
