package ipc

import "time"

// StatusRequest asks the daemon for its current state.
type StatusRequest struct{}

// StatusResponse summarizes the running daemon.
type StatusResponse struct {
	Running    bool      `json:"running"`
	WorkerID   string    `json:"worker_id"`
	StartedAt  time.Time `json:"started_at"`
	Total      int       `json:"total"`
	Queued     int       `json:"queued"`
	Processing int       `json:"processing"`
	Review     int       `json:"review"`
	Success    int       `json:"success"`
	Failed     int       `json:"failed"`
}

// StopTaskRequest asks the daemon to stop one task. The daemon flags the
// cancel registry first so running subprocesses die promptly, then performs
// the persistent transition.
type StopTaskRequest struct {
	ID int64 `json:"id"`
}

// StopTaskResponse reports the status the task settled into.
type StopTaskResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// QueuePositionRequest asks where a queued task sits in the admission order.
type QueuePositionRequest struct {
	ID int64 `json:"id"`
}

// QueuePositionResponse carries the 1-based position; 0 means not queued.
type QueuePositionResponse struct {
	Position int `json:"position"`
	Total    int `json:"total"`
}
