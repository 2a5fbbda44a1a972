// Package audit provides audit logging for identity operations.
//
// Events are written as RFC5424 syslog lines and, when AUDIT_DATABASE_URL is
// set, persisted to the messages table.
//
// # Event Types
//
//   - ResolveEvent: an inbound identity was accepted or rejected, with the
//     cause of a rejection (policy, no-token or lookup)
//   - CheckoutEvent: a connection could not be checked out of the pool
//   - CommitEvent: the outbound identity was committed or failed to commit
//   - WhoamiEvent: a caller inspected its own identity
//
// # Usage
//
//	auditor := audit.New(os.Stdout, nil)
//	auditor.Log(audit.ResolveEvent{RoleID: id, ClientIP: ip, Policy: "cookie", Success: true})
package audit
