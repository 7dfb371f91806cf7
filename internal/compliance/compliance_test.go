package compliance_test

import (
	"strings"
	"testing"

	"shadowpipe/internal/compliance"
	"shadowpipe/pkg/domain"
)

func TestCheckInteractionClean(t *testing.T) {
	c := compliance.NewChecker()
	it := domain.CapturedInteraction{
		Request: domain.CapturedRequest{
			Method:  "POST",
			Path:    "/api/users",
			Headers: map[string]string{"Authorization": "[PII:abcdefghabcdefgh]", "Content-Type": "application/json"},
			Body:    `{"email":"[REDACTED-EMAIL]"}`,
		},
		Response: domain.CapturedResponse{StatusCode: 201, Body: `{"id":7}`},
	}

	if got := c.CheckInteraction(&it); len(got) != 0 {
		t.Errorf("violations = %v, want none", got)
	}
}

func TestCheckInteractionViolations(t *testing.T) {
	c := compliance.NewChecker()

	tests := []struct {
		name string
		it   domain.CapturedInteraction
		want string
	}{
		{
			"请求体残留邮箱",
			domain.CapturedInteraction{Request: domain.CapturedRequest{Body: `{"email":"alice@example.com"}`}},
			"unredacted email",
		},
		{
			"响应体残留信用卡",
			domain.CapturedInteraction{Response: domain.CapturedResponse{Body: "card 4111 1111 1111 1111"}},
			"unredacted credit_card",
		},
		{
			"认证头明文留存",
			domain.CapturedInteraction{Request: domain.CapturedRequest{Headers: map[string]string{"Authorization": "Bearer secret"}}},
			"retained in plaintext",
		},
		{
			"查询参数残留SSN",
			domain.CapturedInteraction{Request: domain.CapturedRequest{QueryParams: map[string]string{"q": "123-45-6789"}}},
			"unredacted ssn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.CheckInteraction(&tt.it)
			if len(got) == 0 {
				t.Fatal("expected violations, got none")
			}
			found := false
			for _, v := range got {
				if strings.Contains(v, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("violations = %v, want one containing %q", got, tt.want)
			}
		})
	}
}

func TestCheckSession(t *testing.T) {
	c := compliance.NewChecker()
	sess := domain.UserSession{
		SessionID: "s-1",
		Interactions: []domain.CapturedInteraction{
			{Request: domain.CapturedRequest{Method: "GET", Path: "/clean", Body: `{"ok":true}`}},
			{Request: domain.CapturedRequest{Method: "POST", Path: "/dirty", Body: `{"email":"bob@test.org"}`}},
		},
	}

	report := c.CheckSession(&sess)
	if report.Checked != 2 {
		t.Errorf("Checked = %d, want 2", report.Checked)
	}
	if report.Compliant {
		t.Error("Compliant = true, want false")
	}
	if len(report.Violations) != 1 {
		t.Fatalf("Violations = %v, want 1", report.Violations)
	}
	// 违规条目指明所在交互与端点
	if !strings.Contains(report.Violations[0], "interaction 1") || !strings.Contains(report.Violations[0], "POST /dirty") {
		t.Errorf("violation = %q", report.Violations[0])
	}

	clean := domain.UserSession{SessionID: "s-2"}
	if got := c.CheckSession(&clean); !got.Compliant {
		t.Error("empty session should be compliant")
	}
}
