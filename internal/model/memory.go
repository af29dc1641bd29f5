// Package model defines the core memory data types.
package model

import "time"

// Memory represents a stored memory entry. The ID is content-addressed:
// the same (project, type, content) triple always hashes to the same ID,
// so re-storing a memory is an idempotent upsert.
type Memory struct {
	ID           string         `json:"id"`
	ProjectID    string         `json:"project_id"`
	MemoryType   string         `json:"memory_type"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	Timestamp    time.Time      `json:"timestamp"`
	AccessCount  int            `json:"access_count"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
}

// SearchHit is a memory returned from similarity search.
type SearchHit struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

// Session groups the memories produced between a session-start and
// session-end event.
type Session struct {
	SessionID   string     `json:"session_id"`
	ProjectID   string     `json:"project_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	MemoryCount int        `json:"memory_count"`
}

// TypeStats holds per-type aggregates for a project.
type TypeStats struct {
	Count          int     `json:"count"`
	AvgAccessCount float64 `json:"avg_access_count"`
}

// Stats holds memory statistics for a project.
type Stats struct {
	ProjectID string               `json:"project_id"`
	Total     int                  `json:"total"`
	ByType    map[string]TypeStats `json:"by_type"`
}

// Well-known memory types. The store treats memory_type as an opaque
// string; these names only matter to retention scoring and hooks.
const (
	TypeGeneral         = "general"
	TypeErrorSolution   = "error_solution"
	TypeCodePattern     = "code_pattern"
	TypeSessionSummary  = "session_summary"
	TypeSubagentSummary = "subagent_summary"
	TypePreservation    = "compaction_preservation"
)

// DefaultTypeWeights is the retention scoring table. Types not listed
// score DefaultTypeWeight.
var DefaultTypeWeights = map[string]float64{
	"error_solution":         0.8,
	"security_finding":       0.9,
	"architectural_decision": 0.9,
	"performance_insight":    0.7,
	"code_pattern":           0.6,
	"subagent_summary":       0.7,
	"session_summary":        0.5,
}

// DefaultTypeWeight applies to memory types absent from the weight table.
const DefaultTypeWeight = 0.3
