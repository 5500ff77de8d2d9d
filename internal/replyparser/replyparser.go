// Package replyparser extracts a member's new content from a raw reply
// email, stripping quoted history, attribution headers and signatures.
package replyparser

import (
	"regexp"
	"strings"
)

var (
	// "On Mon, Jan 2, 2026 at 3:04 PM Wes <wes@example.com> wrote:" —
	// clients sometimes wrap this over two lines, so a line that starts the
	// header counts even without the trailing "wrote:".
	attributionRe      = regexp.MustCompile(`(?i)^On\s.{1,200}wrote:\s*$`)
	attributionStartRe = regexp.MustCompile(`(?i)^On\s(Mon|Tue|Wed|Thu|Fri|Sat|Sun|\d)`)
	forwardedRe        = regexp.MustCompile(`(?i)^-{2,}\s*(Forwarded message|Original Message)\s*-{2,}`)
	sentFromRe         = regexp.MustCompile(`(?i)^Sent from my (iPhone|iPad|Android|Galaxy|mobile)`)
	signoffRe          = regexp.MustCompile(`(?i)^(best|best regards|regards|thanks|thank you|cheers|sincerely|warmly|talk soon)[,!.]?\s*$`)
)

// Parse returns the user's new content from a raw email body. An empty
// result means the caller should fall back to AI parsing.
func Parse(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var kept []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		// Everything from a quoted-history marker down is not the user's.
		if attributionRe.MatchString(trimmed) || forwardedRe.MatchString(trimmed) {
			break
		}
		if attributionStartRe.MatchString(trimmed) && nextLinesEndAttribution(lines, i) {
			break
		}
		// "-- " is the standard signature delimiter.
		if line == "-- " || trimmed == "--" {
			break
		}
		if sentFromRe.MatchString(trimmed) {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, line)
	}

	kept = trimSignoffTail(kept)
	return collapseBlankRuns(kept)
}

// nextLinesEndAttribution reports whether a wrapped "On … wrote:" header
// finishes within the following two lines.
func nextLinesEndAttribution(lines []string, i int) bool {
	for j := i; j < len(lines) && j <= i+2; j++ {
		if strings.HasSuffix(strings.TrimSpace(lines[j]), "wrote:") {
			return true
		}
	}
	return false
}

// trimSignoffTail removes a trailing "Thanks,\nJen" style sign-off: a
// sign-off phrase followed by at most two short lines at the very end.
func trimSignoffTail(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	for i := end - 1; i >= 0 && i >= end-3; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if signoffRe.MatchString(trimmed) {
			return lines[:i]
		}
		// Tail lines after a sign-off are short (a name, a title).
		if len(strings.Fields(trimmed)) > 4 {
			break
		}
	}
	return lines[:end]
}

func collapseBlankRuns(lines []string) string {
	var out []string
	blanks := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
