package testgen_test

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"shadowpipe/internal/testgen"
	"shadowpipe/pkg/domain"
)

func sampleCapture() *domain.CapturedTraffic {
	capture := domain.NewCapturedTraffic("http://upstream/")
	capture.Requests = []domain.TrafficRequest{
		{
			Method:     "POST",
			Path:       "/api/orders",
			Headers:    map[string]string{"Authorization": "Bearer x", "Content-Type": "application/json"},
			Body:       `{"item":"widget","qty":2}`,
			StatusCode: 201,
			Response:   &domain.CapturedResponse{StatusCode: 201, Body: `{"order_id":"o-1","status":"created"}`},
		},
		{
			Method:     "GET",
			Path:       "/api/orders/o-1",
			StatusCode: 200,
			Response:   &domain.CapturedResponse{StatusCode: 200, Body: `not json`},
		},
	}
	return capture
}

func TestGenerate(t *testing.T) {
	result := testgen.NewGenerator().Generate(sampleCapture())

	if string(result.CaptureID) == "" {
		t.Error("CaptureID should be carried over")
	}
	if len(result.Tests) != 2 {
		t.Fatalf("generated %d tests, want 2", len(result.Tests))
	}

	first := result.Tests[0]
	if first.Method != "POST" || first.Path != "/api/orders" {
		t.Errorf("test[0] = %s %s", first.Method, first.Path)
	}
	if first.URL != "http://upstream/api/orders" {
		t.Errorf("URL = %s, want http://upstream/api/orders", first.URL)
	}

	// 断言来自实际观测到的响应：状态码 + 响应体顶层键
	var statusAsserts, keyAsserts int
	for _, a := range first.Assertions {
		switch a.Type {
		case "status_code":
			statusAsserts++
			if a.Expected != 201 {
				t.Errorf("status assertion = %v, want 201", a.Expected)
			}
		case "response_key":
			keyAsserts++
		}
	}
	if statusAsserts != 1 {
		t.Errorf("status assertions = %d, want 1", statusAsserts)
	}
	if keyAsserts != 2 {
		t.Errorf("response_key assertions = %d, want 2 (order_id, status)", keyAsserts)
	}

	// 非 JSON 响应只有状态码断言
	second := result.Tests[1]
	for _, a := range second.Assertions {
		if a.Type == "response_key" {
			t.Error("non-JSON response should not produce response_key assertions")
		}
	}
}

func TestNegativeVariants(t *testing.T) {
	result := testgen.NewGenerator().Generate(sampleCapture())
	first := result.Tests[0]

	var invalidBody, missingAuth bool
	for _, n := range first.NegativeTests {
		switch {
		case n.Name == "invalid_body":
			invalidBody = true
			if len(n.ExpectedStatus) == 0 {
				t.Error("invalid_body variant missing expected status")
			}
		case strings.HasPrefix(n.Name, "missing_authorization"):
			missingAuth = true
			if n.RemoveHeader != "Authorization" {
				t.Errorf("RemoveHeader = %s, want Authorization", n.RemoveHeader)
			}
		}
	}
	if !invalidBody {
		t.Error("JSON body request should produce invalid_body variant")
	}
	if !missingAuth {
		t.Error("authorized request should produce missing-auth variant")
	}

	// 无 Body 且无认证头的请求不生成负向变体
	second := result.Tests[1]
	if len(second.NegativeTests) != 0 {
		t.Errorf("test[1] negative variants = %d, want 0", len(second.NegativeTests))
	}
}

func TestTestNamesStable(t *testing.T) {
	a := testgen.NewGenerator().Generate(sampleCapture())
	b := testgen.NewGenerator().Generate(sampleCapture())
	for i := range a.Tests {
		if a.Tests[i].Name != b.Tests[i].Name {
			t.Errorf("test name not stable: %s vs %s", a.Tests[i].Name, b.Tests[i].Name)
		}
	}
	if a.Tests[0].Name != "test_post_api_orders_0" {
		t.Errorf("name = %s, want test_post_api_orders_0", a.Tests[0].Name)
	}
}

func TestExportJSON(t *testing.T) {
	result := testgen.NewGenerator().Generate(sampleCapture())
	data, err := testgen.ExportJSON(result)
	if err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}
	if !gjson.ValidBytes(data) {
		t.Fatal("exported data is not valid JSON")
	}
	if got := gjson.GetBytes(data, "tests.#").Int(); got != 2 {
		t.Errorf("exported tests = %d, want 2", got)
	}
}
