package audit

import "fmt"

// ResolveEvent records the outcome of resolving an inbound identity
type ResolveEvent struct {
	RoleID   string
	ClientIP string
	Policy   string
	Success  bool
	// Cause is "policy", "no-token" or "lookup" for failures
	Cause        string
	ErrorMessage string
}

func (e ResolveEvent) MessageID() string {
	return "identity-resolve"
}

func (e ResolveEvent) Message() string {
	subject := e.RoleID
	if subject == "" {
		subject = "anonymous"
	}
	if e.Success {
		return fmt.Sprintf("%s successfully identified with policy %s", subject, e.Policy)
	}
	msg := fmt.Sprintf("%s failed to identify with policy %s (%s)", subject, e.Policy, e.Cause)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e ResolveEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e ResolveEvent) Facility() int {
	return FacilityAuthPriv
}

func (e ResolveEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"policy": e.Policy,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "resolve",
			"result":    result(e.Success),
		},
	}
	if e.RoleID != "" {
		sd[SDIDAuth]["user"] = e.RoleID
	}
	if e.Cause != "" {
		sd[SDIDAction]["cause"] = e.Cause
	}
	return sd
}

// CheckoutEvent records a failed connection checkout
type CheckoutEvent struct {
	ClientIP     string
	ErrorMessage string
}

func (e CheckoutEvent) MessageID() string {
	return "pool-checkout"
}

func (e CheckoutEvent) Message() string {
	return fmt.Sprintf("connection checkout failed for request from %s: %s", e.ClientIP, e.ErrorMessage)
}

func (e CheckoutEvent) Severity() Severity {
	return SeverityError
}

func (e CheckoutEvent) Facility() int {
	return FacilityDaemon
}

func (e CheckoutEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "checkout",
			"result":    "failure",
		},
	}
}

// CommitEvent records the outbound commit of a changed identity
type CommitEvent struct {
	RoleID       string
	ClientIP     string
	Policy       string
	Changed      bool
	Forget       bool
	Success      bool
	ErrorMessage string
}

func (e CommitEvent) MessageID() string {
	return "identity-commit"
}

func (e CommitEvent) operation() string {
	switch {
	case e.Forget:
		return "forget"
	case e.Changed:
		return "remember"
	default:
		return "keep"
	}
}

func (e CommitEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s identity committed (%s) with policy %s", e.RoleID, e.operation(), e.Policy)
	}
	return fmt.Sprintf("%s identity failed to commit (%s) with policy %s: %s", e.RoleID, e.operation(), e.Policy, e.ErrorMessage)
}

func (e CommitEvent) Severity() Severity {
	if e.Success {
		return SeverityNotice
	}
	return SeverityError
}

func (e CommitEvent) Facility() int {
	return FacilityAuthPriv
}

func (e CommitEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"role": e.RoleID,
		},
		SDIDAuth: {
			"policy": e.Policy,
			"user":   e.RoleID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.operation(),
			"result":    result(e.Success),
		},
	}
}

// WhoamiEvent represents a whoami audit event
type WhoamiEvent struct {
	RoleID   string
	ClientIP string
	Success  bool
}

func (e WhoamiEvent) MessageID() string {
	return "identity-check"
}

func (e WhoamiEvent) Message() string {
	return fmt.Sprintf("%s checked its identity using whoami", e.RoleID)
}

func (e WhoamiEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e WhoamiEvent) Facility() int {
	return FacilityAuth
}

func (e WhoamiEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"role": e.RoleID,
		},
		SDIDAuth: {
			"user": e.RoleID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "check",
			"result":    result(e.Success),
		},
	}
}
