package workflow

import "github.com/p-blackswan/appforge/internal/specialist"

var frontendTech = map[string]string{
	"web":     "React",
	"mobile":  "React Native",
	"desktop": "Electron",
}

// TechStack summarizes the technologies implied by the request.
type TechStack struct {
	Frontend     map[string]string `json:"frontend"`
	Backend      string            `json:"backend"`
	Database     string            `json:"database"`
	Architecture string            `json:"architecture"`
}

// Statistics counts stage outcomes for a run.
type Statistics struct {
	TotalStages     int   `json:"total_stages"`
	CompletedStages int   `json:"completed_stages"`
	FailedStages    int   `json:"failed_stages"`
	TotalDurationMS int64 `json:"total_duration_ms"`
}

// IntegratedResult is the unified document for a run.
type IntegratedResult struct {
	ProjectName    string                            `json:"project_name"`
	Status         string                            `json:"status"`
	Error          string                            `json:"error,omitempty"`
	Stages         map[string]specialist.StageResult `json:"stages"`
	StageOrder     []string                          `json:"stage_order"`
	Features       []string                          `json:"features"`
	TechStack      TechStack                         `json:"tech_stack"`
	ExecutionTimes map[string]int64                  `json:"execution_times"`
	Statistics     Statistics                        `json:"statistics"`
	Logs           []string                          `json:"logs"`
}

// BuildTechStack maps platforms and the architecture tag to a tech summary.
func BuildTechStack(platforms []string, architecture string) TechStack {
	ts := TechStack{
		Frontend:     make(map[string]string, len(platforms)),
		Backend:      "FastAPI",
		Database:     "MongoDB",
		Architecture: architecture,
	}
	for _, p := range platforms {
		if tech, ok := frontendTech[p]; ok {
			ts.Frontend[p] = tech
		}
	}
	return ts
}

// Integrated assembles the unified result. It is valid for failed runs too
// and then holds whatever stages finished.
func (r *Run) Integrated() IntegratedResult {
	out := IntegratedResult{
		ProjectName:    r.Request.Name,
		Status:         r.Status,
		Error:          r.Error,
		Stages:         make(map[string]specialist.StageResult, len(r.Results)),
		StageOrder:     make([]string, 0, len(r.Results)),
		Features:       featureLabels(r.Results, r.defs),
		TechStack:      BuildTechStack(r.Request.Platforms, r.Request.Architecture),
		ExecutionTimes: make(map[string]int64, len(r.Timings)),
		Logs:           append([]string{}, r.Logs...),
	}

	for _, res := range r.Results {
		out.Stages[res.Stage] = res
		out.StageOrder = append(out.StageOrder, res.Stage)
		out.Statistics.TotalStages++
		if res.Completed() {
			out.Statistics.CompletedStages++
		} else {
			out.Statistics.FailedStages++
		}
	}
	for k, v := range r.Timings {
		out.ExecutionTimes[k] = v
		out.Statistics.TotalDurationMS += v
	}
	return out
}
