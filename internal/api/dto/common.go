package dto

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// PathIDs covers every id segment in the route table; absent params stay empty
type PathIDs struct {
	ID     string `uri:"id" binding:"omitempty,uuid"`
	UserID string `uri:"user_id" binding:"omitempty,uuid"`
}

type PageRequest struct {
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Cursor   string `form:"cursor"`
}

type ReasonRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type StatusCountDTO struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type StatsResponse struct {
	Bookings []StatusCountDTO `json:"bookings"`
	Scrap    []StatusCountDTO `json:"scrap"`
	Realtime RealtimeStats    `json:"realtime"`
}

type RealtimeStats struct {
	OpenAlerts int `json:"open_alerts"`
}
