package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "painel@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "painel@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "painel@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderCredentialsTemplate(t *testing.T) {
	data := CredentialsData{
		AppName:  "Pauta",
		UserName: "Ana Lima",
		Email:    "ana@example.com",
		Password: "Xk3!pfm9Qw-z",
	}

	html, err := renderTemplate(credentialsEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Pauta") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Ana Lima") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "ana@example.com") {
		t.Error("template should contain the login email")
	}
	if !strings.Contains(html, "Xk3!pfm9Qw-z") {
		t.Error("template should contain the generated password")
	}
}

func TestSendFailsWhenUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	err := svc.SendCredentialsEmail("ana@example.com", "Ana", "ana@example.com", "senha")
	if err == nil {
		t.Fatal("expected error when SMTP is not configured")
	}
}
