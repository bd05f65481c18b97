package query

import (
	"strings"
	"testing"
)

func TestTokenizeCommand(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{`SET greeting "hello world"`, []string{"SET", "greeting", "hello world"}},
		{`GET key`, []string{"GET", "key"}},
		{`SET k 'single quoted'`, []string{"SET", "k", "single quoted"}},
		{`  SPACED   OUT  `, []string{"SPACED", "OUT"}},
		{``, nil},
	}
	for _, tc := range cases {
		got := TokenizeCommand(tc.input)
		if len(got) != len(tc.want) {
			t.Errorf("TokenizeCommand(%q) = %v, want %v", tc.input, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("TokenizeCommand(%q)[%d] = %q, want %q", tc.input, i, got[i], tc.want[i])
			}
		}
	}
}

func TestSplitBatch(t *testing.T) {
	script := "SET a 1\n# a comment\n\nSET b 2\n  SET c 3  "
	cmds := SplitBatch(script)
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d: %v", len(cmds), cmds)
	}
	if cmds[2] != "SET c 3" {
		t.Errorf("expected trimmed command, got %q", cmds[2])
	}
}

func TestRunBatchAggregation(t *testing.T) {
	cmds := []string{"SET a 1", "BADCMD", "SET b 2"}
	result := RunBatch(cmds, func(cmd string) *Result {
		if strings.HasPrefix(cmd, "SET") {
			return messageResult("OK")
		}
		return Failure("BADCMD", "unsupported command: BADCMD")
	})

	if result.Success {
		t.Error("expected aggregate failure when any command fails")
	}
	if result.Error != "unsupported command: BADCMD" {
		t.Errorf("expected last error retained, got %q", result.Error)
	}
	if !strings.Contains(result.Message, "2 succeeded") || !strings.Contains(result.Message, "1 failed") {
		t.Errorf("unexpected aggregate message: %q", result.Message)
	}
}

func TestRunBatchAllSucceed(t *testing.T) {
	result := RunBatch([]string{"SET a 1", "SET b 2"}, func(string) *Result {
		return messageResult("OK")
	})
	if !result.Success || result.Error != "" {
		t.Errorf("expected clean aggregate, got success=%v error=%q", result.Success, result.Error)
	}
}

func TestRunBatchDoesNotAbortOnFailure(t *testing.T) {
	var executed []string
	RunBatch([]string{"A", "B", "C"}, func(cmd string) *Result {
		executed = append(executed, cmd)
		if cmd == "A" {
			return Failure("A", "boom")
		}
		return messageResult("OK")
	})
	if len(executed) != 3 {
		t.Errorf("expected all commands executed despite failure, got %v", executed)
	}
}
