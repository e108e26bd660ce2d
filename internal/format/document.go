package format

import (
	"fmt"
	"strings"
	"time"
)

// Header describes an export file.
type Header struct {
	Total      int
	ExportedAt time.Time
	ChannelID  string
	// After and Before bound the export when non-zero.
	After  time.Time
	Before time.Time
}

// String renders the header lines.
func (h Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total messages: %d\n", h.Total)
	fmt.Fprintf(&b, "Export date: %s\n", h.ExportedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Channel ID: %s", h.ChannelID)
	if !h.After.IsZero() || !h.Before.IsZero() {
		from, to := "beginning", "now"
		if !h.After.IsZero() {
			from = h.After.UTC().Format(timeLayout)
		}
		if !h.Before.IsZero() {
			to = h.Before.UTC().Format(timeLayout)
		}
		fmt.Fprintf(&b, "\nTime range: %s - %s", from, to)
	}
	return b.String()
}

// Document joins a header and message blocks, separated by blank lines.
func Document(h Header, blocks []string) string {
	var b strings.Builder
	b.WriteString(h.String())
	for _, block := range blocks {
		b.WriteString("\n\n")
		b.WriteString(block)
	}
	b.WriteString("\n")
	return b.String()
}
