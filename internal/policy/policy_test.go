package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestIsBlocked tests each rule and its known blind spots
func TestIsBlocked(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		blocked bool
	}{
		{name: "recursive delete", cmd: "rm -rf /", blocked: true},
		{name: "recursive delete mid command", cmd: "cd /tmp && rm -rf x", blocked: true},
		{name: "fork bomb", cmd: ":(){:|:&};:", blocked: true},
		{name: "mkfs prefix", cmd: "mkfs.ext4 /dev/sda1", blocked: true},
		{name: "dd redirected to device", cmd: "dd if=boot.img > /dev/sda", blocked: true},
		{name: "dd with spaced device argument", cmd: "dd bs=1M /dev/sdb", blocked: true},

		{name: "plain listing", cmd: "ls -la", blocked: false},
		{name: "rm without -rf", cmd: "rm -r /tmp/x", blocked: false},
		{name: "split flags", cmd: "rm -r -f /", blocked: false},
		{name: "flags reordered", cmd: "rm -fr /", blocked: false},
		{name: "double space", cmd: "rm  -rf /", blocked: false},
		{name: "mkfs not at start", cmd: "sudo mkfs /dev/sda", blocked: false},
		{name: "dd to a regular file", cmd: "dd if=a of=b", blocked: false},
		{name: "dd with of= device", cmd: "dd if=/dev/zero of=/dev/sda", blocked: false},
		{name: "dd without space after", cmd: "dd\tif=/dev/zero of=/dev/sda", blocked: false},
		{name: "leading space", cmd: " mkfs /dev/sda", blocked: false},
		{name: "empty", cmd: "", blocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlocked(tt.cmd))
		})
	}
}

func TestCheckNamesRule(t *testing.T) {
	name, blocked := Check("echo hi; rm -rf ~")
	assert.True(t, blocked)
	assert.Equal(t, "recursive-delete", name)

	name, blocked = Check("uptime")
	assert.False(t, blocked)
	assert.Empty(t, name)
}

// TestRecursiveDeleteAlwaysBlocked checks that any command embedding the
// literal is blocked
func TestRecursiveDeleteAlwaysBlocked(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prefix := rapid.String().Draw(t, "prefix")
		suffix := rapid.String().Draw(t, "suffix")
		if !IsBlocked(prefix + "rm -rf" + suffix) {
			t.Fatalf("command with rm -rf was allowed")
		}
	})
}
