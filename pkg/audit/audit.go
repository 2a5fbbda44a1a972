package audit

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// SDID constants for structured data IDs (RFC5424)
const (
	PEN         = 43868
	SDIDAuth    = "auth@43868"
	SDIDSubject = "subject@43868"
	SDIDAction  = "action@43868"
	SDIDClient  = "client@43868"
)

// Syslog facility constants
const (
	FacilityDaemon   = 3  // LOG_DAEMON - system daemons
	FacilityAuth     = 4  // LOG_AUTH - security/authorization messages
	FacilityAuthPriv = 10 // LOG_AUTHPRIV - security/authorization messages (private)
)

// AppName is the APP-NAME field of every audit line
const AppName = "identity"

// Severity levels matching syslog (RFC5424)
type Severity int

const (
	SeverityEmergency Severity = iota // 0
	SeverityAlert                     // 1
	SeverityCritical                  // 2
	SeverityError                     // 3
	SeverityWarning                   // 4
	SeverityNotice                    // 5
	SeverityInfo                      // 6
	SeverityDebug                     // 7
)

// Event represents an audit event
type Event interface {
	MessageID() string
	Message() string
	Severity() Severity
	Facility() int
	StructuredData() map[string]map[string]string
}

// Sink receives audit events
type Sink interface {
	Log(event Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Log(Event) {}

// Auditor writes events as RFC5424 lines and optionally persists them
type Auditor struct {
	mu       sync.Mutex
	writer   io.Writer
	store    *Store
	hostname string
	pid      int
	now      func() time.Time
}

var _ Sink = (*Auditor)(nil)

// New creates an Auditor writing to w. store may be nil.
func New(w io.Writer, store *Store) *Auditor {
	hostname, _ := os.Hostname()
	return &Auditor{
		writer:   w,
		store:    store,
		hostname: hostname,
		pid:      os.Getpid(),
		now:      time.Now,
	}
}

// Enabled reports whether IDENTITY_AUDIT_ENABLED allows auditing.
// Auditing is on unless the variable is false, 0 or no.
func Enabled() bool {
	env := os.Getenv("IDENTITY_AUDIT_ENABLED")
	return env != "false" && env != "0" && env != "no"
}

// Log writes an event in RFC5424 syslog format
// Format: <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID SD MSG
func (a *Auditor) Log(event Event) {
	pri := event.Facility()*8 + int(event.Severity())
	timestamp := a.now().UTC().Format("2006-01-02T15:04:05.000Z")

	sd := formatStructuredData(event.StructuredData())
	if sd == "" {
		sd = "-"
	}

	hostname := a.hostname
	if hostname == "" {
		hostname = "-"
	}

	line := fmt.Sprintf("<%d>1 %s %s %s %d %s %s %s\n",
		pri,
		timestamp,
		hostname,
		AppName,
		a.pid,
		event.MessageID(),
		sd,
		event.Message(),
	)

	a.mu.Lock()
	_, _ = io.WriteString(a.writer, line)
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Save(event); err != nil {
			fmt.Fprintf(os.Stderr, "audit: failed to save event: %v\n", err)
		}
	}
}

// formatStructuredData formats the structured data according to RFC5424
// Format: [sdid param1="value1" param2="value2"][sdid2 ...]
// Elements and parameters are sorted so lines are stable.
func formatStructuredData(sd map[string]map[string]string) string {
	if len(sd) == 0 {
		return ""
	}

	sdids := make([]string, 0, len(sd))
	for sdid := range sd {
		sdids = append(sdids, sdid)
	}
	sort.Strings(sdids)

	var sb strings.Builder
	for _, sdid := range sdids {
		params := sd[sdid]
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		sb.WriteString("[" + sdid)
		for _, key := range keys {
			sb.WriteString(" " + key + "=" + escapeSDValue(params[key]))
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// escapeSDValue escapes special characters in structured data values per RFC5424
func escapeSDValue(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "]", "\\]")
	return "\"" + value + "\""
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
