package tui

import (
	"strings"
	"testing"
)

func TestShouldPromptDisabledInCI(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{"GitHub Actions", map[string]string{"GITHUB_ACTIONS": "true"}},
		{"GitLab CI", map[string]string{"GITLAB_CI": "true"}},
		{"Jenkins", map[string]string{"JENKINS_URL": "http://jenkins.local"}},
		{"Generic CI", map[string]string{"CI": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}
			if ShouldPrompt() {
				t.Errorf("ShouldPrompt() = true with env %v", tt.envVars)
			}
		})
	}
}

func TestPromptForSelectRequiresOptions(t *testing.T) {
	if _, err := PromptForSelect("Choose:", nil); err == nil {
		t.Error("expected error when no options provided, got nil")
	}
}

func TestRunDescription(t *testing.T) {
	got := RunDescription([]string{"architect", "backend", "qa"}, 2, "anthropic")
	if !strings.HasPrefix(got, "2 of 3 roles will call anthropic") {
		t.Errorf("unexpected description %q", got)
	}
	if !strings.Contains(got, "architect → backend → qa") {
		t.Errorf("description should list the order: %q", got)
	}
}
