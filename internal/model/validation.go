package model

// 会话质量评定的输入输出契约。交互遥测的采集在客户端完成，
// 这里只定义评分与校验的数据结构。

// InteractionQuality 单次交互的质量采样
type InteractionQuality struct {
	ContentLength       int      `json:"content_length"`
	ResponseTimeSeconds float64  `json:"response_time_seconds"`
	InteractionType     string   `json:"interaction_type"` // chat / code / navigation / completion
	EngagementScore     float64  `json:"engagement_score"` // 0.0–1.0
	SuspiciousPatterns  []string `json:"suspicious_patterns"`
}

// SessionValidation 对一次会话的质量评定结论
type SessionValidation struct {
	SessionID                uint     `json:"session_id"`
	IsValid                  bool     `json:"is_valid"`
	QualityScore             float64  `json:"quality_score"` // 0–1
	Flags                    []string `json:"flags"`
	RecommendedActiveMinutes int      `json:"recommended_active_minutes"`
}
