// Package analyzer 对捕获流量做单遍统计分析
package analyzer

import (
	"sort"

	"shadowpipe/pkg/domain"
)

// Analyze 单遍扫描捕获文件，统计方法、状态码与端点分布
// 端点标识为 "METHOD PATH"；按 matched_service 分组端点列表
func Analyze(capture *domain.CapturedTraffic) *domain.TrafficAnalysis {
	analysis := &domain.TrafficAnalysis{
		Methods:     map[string]int{},
		StatusCodes: map[int]int{},
		Services:    map[string][]string{},
	}
	if capture == nil {
		return analysis
	}

	endpoints := map[string]struct{}{}
	serviceSeen := map[string]map[string]struct{}{}

	for i := range capture.Requests {
		req := &capture.Requests[i]
		analysis.TotalRequests++
		analysis.Methods[req.Method]++
		if req.StatusCode != 0 {
			analysis.StatusCodes[req.StatusCode]++
		} else if req.Response != nil {
			analysis.StatusCodes[req.Response.StatusCode]++
		}

		ep := req.Endpoint()
		endpoints[ep] = struct{}{}

		service := req.MatchedService
		if service == "" {
			service = "unknown"
		}
		if serviceSeen[service] == nil {
			serviceSeen[service] = map[string]struct{}{}
		}
		serviceSeen[service][ep] = struct{}{}
	}

	analysis.UniqueEndpoints = len(endpoints)
	for service, eps := range serviceSeen {
		list := make([]string, 0, len(eps))
		for ep := range eps {
			list = append(list, ep)
		}
		sort.Strings(list)
		analysis.Services[service] = list
	}
	return analysis
}
