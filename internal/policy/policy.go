// Package policy decides which commands a worker refuses to run.
//
// The rules are deliberately coarse substring and prefix checks. They catch
// the literal forms below and nothing else: a recursive delete hidden behind
// a variable, an alias or different spacing gets through, as does dd writing
// anywhere outside /dev. Callers rely on exactly this behaviour.
package policy

import "strings"

// BlockedMessage is the whole reply to a blocked command.
const BlockedMessage = "Command blocked by security policy.\n"

// Rule is one blocking check.
type Rule struct {
	Name  string
	Match func(cmd string) bool
}

// Rules are evaluated in order; any match blocks.
var Rules = []Rule{
	{Name: "recursive-delete", Match: func(cmd string) bool { return strings.Contains(cmd, "rm -rf") }},
	{Name: "fork-bomb", Match: func(cmd string) bool { return strings.Contains(cmd, ":(){:|:&};:") }},
	{Name: "mkfs", Match: func(cmd string) bool { return strings.HasPrefix(cmd, "mkfs") }},
	{Name: "dd-device", Match: func(cmd string) bool {
		return strings.HasPrefix(cmd, "dd ") && strings.Contains(cmd, " /dev/")
	}},
}

// IsBlocked reports whether cmd matches any rule.
func IsBlocked(cmd string) bool {
	_, blocked := Check(cmd)
	return blocked
}

// Check returns the name of the first matching rule.
func Check(cmd string) (string, bool) {
	for _, r := range Rules {
		if r.Match(cmd) {
			return r.Name, true
		}
	}
	return "", false
}
