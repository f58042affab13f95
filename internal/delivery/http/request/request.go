package request

// BlockHostRequest places a manual block on a hostname.
type BlockHostRequest struct {
	UserID          string `json:"user_id"`
	Reason          string `json:"reason"`
	BlockType       string `json:"block_type"`
	DurationMinutes int    `json:"duration_minutes"` // 0 draws a random cool-down
}

// AccountBlockEventRequest reports a banned account seen on Hostname.
type AccountBlockEventRequest struct {
	Reason   string `json:"reason"`
	Type     string `json:"type"`
	Hostname string `json:"hostname"`
}
