package device

import (
	"fmt"
	"strings"
)

// Source identifies the component that raised a diagnostic.
type Source uint8

// Diagnostic sources.
const (
	SourceAPI Source = iota
	SourceWindowSystem
	SourceShaderCompiler
	SourceThirdParty
	SourceApplication
	SourceOther
)

var sourceNames = [...]string{"API", "WINDOW SYSTEM", "SHADER COMPILER", "THIRD PARTY", "APPLICATION", "OTHER"}

func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return fmt.Sprintf("SOURCE %d", uint8(s))
}

// MessageType classifies a diagnostic.
type MessageType uint8

// Diagnostic types.
const (
	TypeError MessageType = iota
	TypeDeprecated
	TypeUndefined
	TypePortability
	TypePerformance
	TypeOther
)

var typeNames = [...]string{"ERROR", "DEPRECATED BEHAVIOR", "UNDEFINED BEHAVIOR", "PORTABILITY", "PERFORMANCE", "OTHER"}

func (t MessageType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("TYPE %d", uint8(t))
}

// Severity ranks a diagnostic.
type Severity uint8

// Diagnostic severities, most severe first.
const (
	SeverityHigh Severity = iota
	SeverityMedium
	SeverityLow
	SeverityNotification
)

var severityNames = [...]string{"HIGH", "MEDIUM", "LOW", "NOTIFICATION"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("SEVERITY %d", uint8(s))
}

// Message is a device diagnostic.
type Message struct {
	Source   Source
	Type     MessageType
	Severity Severity
	ID       uint32
	Text     string
}

// String renders the message as a multi-line report.
func (m Message) String() string {
	var b strings.Builder
	b.WriteString("DEBUG\n\n")
	fmt.Fprintf(&b, "ID: %d\n", m.ID)
	fmt.Fprintf(&b, "SOURCE: %s\n", m.Source)
	fmt.Fprintf(&b, "TYPE: %s\n", m.Type)
	fmt.Fprintf(&b, "SEVERITY: %s\n", m.Severity)
	fmt.Fprintf(&b, "MESSAGE: %s\n", m.Text)
	return b.String()
}

// DebugFunc receives device diagnostics synchronously on the submitting
// goroutine.
type DebugFunc func(Message)
