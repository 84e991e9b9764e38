package main

import (
	"encoding/json"
	"strings"
	"testing"

	"forgesync/internal/ipc"
)

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range cases {
		if got := humanBytes(tc.size); got != tc.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestChannelDetailIncludesAttemptAndError(t *testing.T) {
	resp := &ipc.StatusResponse{
		ChannelState:        "reconnecting",
		ChannelRetryAttempt: 2,
		ChannelLastError:    "dial tcp: connection refused",
	}
	detail := channelDetail(resp)
	if !strings.Contains(detail, "Reconnecting") {
		t.Errorf("detail %q missing state", detail)
	}
	if !strings.Contains(detail, "attempt 2") {
		t.Errorf("detail %q missing attempt", detail)
	}
	if !strings.Contains(detail, "connection refused") {
		t.Errorf("detail %q missing error", detail)
	}
}

func TestBuildSubmitOptionsMergesPassphrase(t *testing.T) {
	encoded, err := buildSubmitOptions(`{"encryption":"aes-256-gcm"}`, "hunter2")
	if err != nil {
		t.Fatalf("buildSubmitOptions: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		t.Fatalf("unmarshal options: %v", err)
	}
	if decoded["passphrase"] != "hunter2" {
		t.Errorf("passphrase = %v", decoded["passphrase"])
	}
	if decoded["encryption"] != "aes-256-gcm" {
		t.Errorf("encryption = %v", decoded["encryption"])
	}
}

func TestBuildSubmitOptionsRejectsBadJSON(t *testing.T) {
	if _, err := buildSubmitOptions(`{not json`, ""); err == nil {
		t.Fatal("expected error for malformed options")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"ID", "Size"}, [][]string{{"queued-1"}}, 1)
	if !strings.Contains(out, "queued-1") {
		t.Errorf("rendered table missing row data:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}

func TestRenderStatusLineColorizesByKind(t *testing.T) {
	plain := renderStatusLine("Backend", statusError, "unreachable", false)
	if strings.Contains(plain, "\x1b[") {
		t.Errorf("uncolorized line carries ANSI codes: %q", plain)
	}
	if !strings.Contains(plain, "[ERROR] unreachable") {
		t.Errorf("line missing kind and message: %q", plain)
	}

	colored := renderStatusLine("Backend", statusError, "unreachable", true)
	if !strings.HasPrefix(colored, "\x1b[31m") || !strings.HasSuffix(colored, ansiReset) {
		t.Errorf("colorized error line not wrapped in red: %q", colored)
	}
}

func TestRenderSectionHeaderUnderlinesTitle(t *testing.T) {
	header := renderSectionHeader("Daemon", false)
	lines := strings.Split(header, "\n")
	if len(lines) != 2 {
		t.Fatalf("header should be title plus rule, got %q", header)
	}
	if len(lines[1]) != len(lines[0]) {
		t.Errorf("rule length %d does not match title length %d", len(lines[1]), len(lines[0]))
	}
}

func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	want := []string{"status", "stop", "mode", "queue", "submit", "sync", "jobs", "test-notify", "config"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing %q subcommand", name)
		}
	}
}
