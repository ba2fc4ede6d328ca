package models

import "time"

// AnonymizationJob is a request popped from the job queue.
type AnonymizationJob struct {
	JobID          string                 `json:"job_id"`
	Method         string                 `json:"method"`
	Params         map[string]interface{} `json:"params,omitempty"`
	UserSelections []RoleAssignment       `json:"user_selections,omitempty"`
	Dataset        *Dataset               `json:"dataset"`
	Metadata       Metadata               `json:"metadata"`
	SubmittedAt    time.Time              `json:"submitted_at,omitempty"`
}

// AnonymizationResult is published once a job completes.
type AnonymizationResult struct {
	JobID          string                 `json:"job_id"`
	Status         string                 `json:"status"`
	MethodUsed     string                 `json:"method_used"`
	ParamsUsed     map[string]interface{} `json:"params_used"`
	Sample         *Dataset               `json:"sample,omitempty"`
	Dataset        *Dataset               `json:"dataset,omitempty"`
	OutputLocation string                 `json:"output_location,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	AnonymizedAt   time.Time              `json:"anonymized_at"`
}

// ErrorNotification is published when a job fails at any stage.
type ErrorNotification struct {
	JobID     string    `json:"job_id"`
	Stage     string    `json:"stage"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// JobStatus is the last known state of a job.
type JobStatus struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Method    string    `json:"method,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
