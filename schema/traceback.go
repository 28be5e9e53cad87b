package schema

import "fmt"

// MaxTracebackLines caps traceback display length. The full traceback is
// always retained on the ErrorOutput for copy actions; only rendering is
// truncated.
const MaxTracebackLines = 20

// FormatTraceback returns the display form of a traceback. Tracebacks of at
// most MaxTracebackLines are returned unchanged. Longer ones are reduced to
// the last MaxTracebackLines preceded by a marker line naming the total.
func FormatTraceback(lines []string) []string {
	if len(lines) <= MaxTracebackLines {
		return lines
	}
	out := make([]string, 0, MaxTracebackLines+1)
	out = append(out, fmt.Sprintf("[traceback truncated: showing last %d of %d lines]", MaxTracebackLines, len(lines)))
	out = append(out, lines[len(lines)-MaxTracebackLines:]...)
	return out
}
