package errors

import (
	"fmt"
	"sort"
	"strings"
)

// FormatUser formats an error for end-user display.
// IndexErrors render their message, details, and suggestion; other errors
// fall back to Error().
func FormatUser(err error) string {
	if err == nil {
		return ""
	}

	ie, ok := err.(*IndexError)
	if !ok {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(ie.Message)

	if len(ie.Details) > 0 {
		keys := make([]string, 0, len(ie.Details))
		for k := range ie.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s: %s", k, ie.Details[k])
		}
	}

	if ie.Suggestion != "" {
		fmt.Fprintf(&b, "\nHint: %s", ie.Suggestion)
	}

	return b.String()
}

// FormatLog formats an error for structured log output, code first.
func FormatLog(err error) string {
	if err == nil {
		return ""
	}

	ie, ok := err.(*IndexError)
	if !ok {
		return err.Error()
	}

	if ie.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", ie.Code, ie.Message, ie.Cause)
	}
	return fmt.Sprintf("[%s] %s", ie.Code, ie.Message)
}
