// Package hierarchy classifies test case statuses and rolls issues up into
// the epic, story and test case tree shown on the dashboard.
package hierarchy

import "strings"

// Bucket is one of the four canonical test outcomes.
type Bucket string

const (
	Passing  Bucket = "passing"
	Partial  Bucket = "partial"
	Breaking Bucket = "breaking"
	Pending  Bucket = "pending"
)

// statusPatterns is checked in order; the first matching substring wins.
// Workflow status names differ between Jira instances, so matching is on
// substrings rather than exact names.
var statusPatterns = []struct {
	substr string
	bucket Bucket
}{
	{"pass", Passing},
	{"partial", Partial},
	{"break", Breaking},
	{"fail", Breaking},
}

// Classify maps a free-form status to its bucket. Anything unrecognized,
// including the empty string, is Pending.
func Classify(status string) Bucket {
	s := strings.ToLower(status)
	for _, p := range statusPatterns {
		if strings.Contains(s, p.substr) {
			return p.bucket
		}
	}
	return Pending
}
