package command

import (
	"regexp"
	"strings"
)

// At-mention shapes seen across chat front-ends. First match wins, in this
// order; a bare digit string is accepted last.
var userRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[CQ:at,qq=(\d+)\]`),
	regexp.MustCompile(`\[At:(\d+)\]`),
	regexp.MustCompile(`\((\d+)\)`),
	regexp.MustCompile(`^(\d+)$`),
}

// ExtractUserID pulls the numeric user id out of a user reference: a raw id,
// or an at-mention in one of the bracketed formats. Empty string means no id
// was found.
func ExtractUserID(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, re := range userRefPatterns {
		if m := re.FindStringSubmatch(ref); m != nil {
			return m[1]
		}
	}
	return ""
}
