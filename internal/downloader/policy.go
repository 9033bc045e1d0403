package downloader

import (
	"net/url"
	"strings"
	"time"

	"mpdgrab/internal/config"
)

// DefaultPolicyName is reported for sources no policy matches.
const DefaultPolicyName = "default"

// Policy is the retry behaviour for one class of source.
type Policy struct {
	Name       string
	Hosts      []string
	MaxRetries int
	Backoff    time.Duration
}

// PolicyTable maps source hosts to retry policies.
type PolicyTable struct {
	policies []Policy
	fallback Policy
}

// NewPolicyTable builds a table from configured policies. Sources that match
// no entry get a policy with no retries.
func NewPolicyTable(entries []config.RetryPolicy) *PolicyTable {
	table := &PolicyTable{fallback: Policy{Name: DefaultPolicyName}}
	for _, entry := range entries {
		hosts := make([]string, 0, len(entry.Hosts))
		for _, host := range entry.Hosts {
			if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
				hosts = append(hosts, host)
			}
		}
		if len(hosts) == 0 {
			continue
		}
		table.policies = append(table.policies, Policy{
			Name:       entry.Name,
			Hosts:      hosts,
			MaxRetries: max(entry.MaxRetries, 0),
			Backoff:    time.Duration(entry.BackoffSeconds) * time.Second,
		})
	}
	return table
}

// Classify returns the policy for source. The source host is matched against
// each policy's host patterns in table order; the first hit wins.
func (t *PolicyTable) Classify(source string) Policy {
	if t == nil {
		return Policy{Name: DefaultPolicyName}
	}
	host := sourceHost(source)
	for _, policy := range t.policies {
		for _, pattern := range policy.Hosts {
			if strings.Contains(host, pattern) {
				return policy
			}
		}
	}
	return t.fallback
}

func sourceHost(source string) string {
	source = strings.TrimSpace(source)
	if parsed, err := url.Parse(source); err == nil && parsed.Host != "" {
		return strings.ToLower(parsed.Hostname())
	}
	return strings.ToLower(source)
}

// RetryBudget bounds the retries of one Download invocation.
type RetryBudget struct {
	max  int
	used int
}

// NewRetryBudget returns a budget allowing up to maxRetries retries.
func NewRetryBudget(maxRetries int) *RetryBudget {
	return &RetryBudget{max: max(maxRetries, 0)}
}

// Take consumes one retry, reporting false once the budget is exhausted.
func (b *RetryBudget) Take() bool {
	if b.used >= b.max {
		return false
	}
	b.used++
	return true
}

// Used returns the number of retries consumed.
func (b *RetryBudget) Used() int {
	return b.used
}

// Remaining returns the number of retries left.
func (b *RetryBudget) Remaining() int {
	return b.max - b.used
}
