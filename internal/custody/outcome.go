package custody

import "github.com/congo-pay/custody_auth/internal/apperr"

// Outcome is the classification of a custody backend response.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// CodeAlreadyInitialized is returned by the initialize endpoint when the
// account already exists for the user.
const CodeAlreadyInitialized = 155106

// Rule matches a response by HTTP status range and/or backend error code.
// Zero values are wildcards. StatusMax defaults to StatusMin.
type Rule struct {
	StatusMin int
	StatusMax int
	Code      int
	Outcome   Outcome
}

func (r Rule) matches(status, code int) bool {
	if r.Code != 0 && r.Code != code {
		return false
	}
	if r.StatusMin == 0 {
		return true
	}
	hi := r.StatusMax
	if hi == 0 {
		hi = r.StatusMin
	}
	return status >= r.StatusMin && status <= hi
}

// Policy is the outcome table of one custody operation. The first matching
// rule wins; Default applies when none match.
type Policy struct {
	Op      string
	Rules   []Rule
	Default Outcome
}

// Classify returns the outcome of a response with the given status and code.
func (p Policy) Classify(status, code int) Outcome {
	for _, r := range p.Rules {
		if r.matches(status, code) {
			return r.Outcome
		}
	}
	return p.Default
}

// Operation names used for policies, idempotency keys and metrics.
const (
	OpEnsureUser  = "ensure_user"
	OpIssueToken  = "issue_token"
	OpInitialize  = "initialize"
	OpDispatchOTP = "dispatch_otp"
	OpListWallets = "list_wallets"
)

var (
	success2xx = Rule{StatusMin: 200, StatusMax: 299, Outcome: OutcomeSuccess}
	transient  = []Rule{
		{StatusMin: 408, Outcome: OutcomeRetryable},
		{StatusMin: 429, Outcome: OutcomeRetryable},
		{StatusMin: 500, StatusMax: 599, Outcome: OutcomeRetryable},
	}
)

func policy(op string, rules ...Rule) Policy {
	return Policy{Op: op, Rules: append(rules, transient...), Default: OutcomeFatal}
}

// Policies is the outcome table for every custody operation.
var Policies = map[string]Policy{
	OpEnsureUser: policy(OpEnsureUser,
		success2xx,
		Rule{StatusMin: 409, Outcome: OutcomeSuccess},
	),
	OpIssueToken: policy(OpIssueToken, success2xx),
	OpInitialize: policy(OpInitialize,
		success2xx,
		Rule{Code: CodeAlreadyInitialized, Outcome: OutcomeSuccess},
	),
	OpDispatchOTP: policy(OpDispatchOTP, success2xx),
	OpListWallets: policy(OpListWallets, success2xx),
}

// Classify looks up the policy for op. Unknown operations only accept 2xx.
func Classify(op string, resp Response) Outcome {
	p, ok := Policies[op]
	if !ok {
		p = policy(op, success2xx)
	}
	return p.Classify(resp.Status, resp.Code)
}

// OutcomeError converts a non-success outcome into a kinded error.
func OutcomeError(op string, outcome Outcome, resp Response) error {
	msg := resp.Message
	if msg == "" {
		msg = "custody backend returned an unexpected response"
	}
	switch outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeRetryable:
		return apperr.New(apperr.KindUpstreamUnavailable, op, msg)
	default:
		return apperr.New(apperr.KindUpstreamRejected, op, msg)
	}
}
