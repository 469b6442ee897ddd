package thehive

import (
	"encoding/json"
	"time"
)

// Severity represents alert and case severity levels.
type Severity int

const (
	SeverityUnknown  Severity = 0
	SeverityLow      Severity = 1
	SeverityMedium   Severity = 2
	SeverityHigh     Severity = 3
	SeverityCritical Severity = 4
)

func (s *Severity) String() string {
	if s == nil {
		return "Unknown"
	}
	switch *s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s *Severity) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(int(*s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Severity(v)
	return nil
}

// TLP is the traffic-light-protocol marking on alerts, cases and observables.
type TLP int

const (
	TLPWhite TLP = 0
	TLPGreen TLP = 1
	TLPAmber TLP = 2
	TLPRed   TLP = 3
)

// Timestamp wraps time.Time with the epoch-millisecond JSON encoding both
// platforms use for date fields.
type Timestamp struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UnixMilli())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// AlertStatus represents the lifecycle status of an alert.
type AlertStatus string

const (
	AlertNew      AlertStatus = "New"
	AlertUpdated  AlertStatus = "Updated"
	AlertIgnored  AlertStatus = "Ignored"
	AlertImported AlertStatus = "Imported"
)

// Alert represents a TheHive alert.
type Alert struct {
	ID          string      `json:"_id,omitempty"`
	Type        string      `json:"type"`
	Source      string      `json:"source"`
	SourceRef   string      `json:"sourceRef"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Severity    Severity    `json:"severity,omitempty"`
	Status      AlertStatus `json:"status,omitempty"`
	TLP         TLP         `json:"tlp,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Date        Timestamp   `json:"date,omitzero"`
	CaseID      string      `json:"caseId,omitempty"`

	CreatedAt Timestamp `json:"_createdAt,omitzero"`
	UpdatedAt Timestamp `json:"_updatedAt,omitzero"`

	// CustomFields holds organisation-defined alert fields.
	CustomFields map[string]any `json:"customFields,omitempty"`
}

// CaseStatus represents the lifecycle status of a case.
type CaseStatus string

const (
	CaseOpen       CaseStatus = "Open"
	CaseResolved   CaseStatus = "Resolved"
	CaseDuplicated CaseStatus = "Duplicated"
)

// Case represents a TheHive case.
type Case struct {
	ID          string     `json:"_id,omitempty"`
	Number      int        `json:"number,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Severity    Severity   `json:"severity,omitempty"`
	Status      CaseStatus `json:"status,omitempty"`
	TLP         TLP        `json:"tlp,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Flag        bool       `json:"flag,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	StartDate   Timestamp  `json:"startDate,omitzero"`
	EndDate     Timestamp  `json:"endDate,omitzero"`

	CreatedAt Timestamp `json:"_createdAt,omitzero"`
	UpdatedAt Timestamp `json:"_updatedAt,omitzero"`

	CustomFields map[string]any `json:"customFields,omitempty"`
}

// Attachment describes a file attached to an observable.
type Attachment struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Size        int64    `json:"size,omitempty"`
	ContentType string   `json:"contentType,omitempty"`
	Hashes      []string `json:"hashes,omitempty"`
}

// Observable represents a piece of evidence attached to a case or alert.
type Observable struct {
	ID         string      `json:"_id,omitempty"`
	DataType   string      `json:"dataType"`
	Data       string      `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	TLP        TLP         `json:"tlp,omitempty"`
	IOC        bool        `json:"ioc,omitempty"`
	Sighted    bool        `json:"sighted,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`

	CreatedAt Timestamp `json:"_createdAt,omitzero"`
}

// Analyzer describes a Cortex analyzer as exposed through TheHive's
// Cortex connector or by Cortex directly.
type Analyzer struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Description  string   `json:"description,omitempty"`
	DataTypeList []string `json:"dataTypeList,omitempty"`
	CortexID     string   `json:"cortexId,omitempty"`
}

// SupportsDataType reports whether the analyzer accepts observables of the
// given data type.
func (a *Analyzer) SupportsDataType(dataType string) bool {
	for _, dt := range a.DataTypeList {
		if dt == dataType {
			return true
		}
	}
	return false
}

// Responder describes a Cortex responder applicable to an entity.
type Responder struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Description  string   `json:"description,omitempty"`
	DataTypeList []string `json:"dataTypeList,omitempty"`
	CortexID     string   `json:"cortexId,omitempty"`
}

// JobStatus represents the status of an analyzer or responder job.
type JobStatus string

const (
	JobWaiting    JobStatus = "Waiting"
	JobInProgress JobStatus = "InProgress"
	JobSuccess    JobStatus = "Success"
	JobFailure    JobStatus = "Failure"
	JobDeleted    JobStatus = "Deleted"

	// JobUnknown is the local fallback for status strings this client does
	// not recognize. It never appears on the wire.
	JobUnknown JobStatus = "Unknown"
)

// ParseJobStatus maps a remote status string onto the known vocabulary,
// returning JobUnknown for anything unexpected.
func ParseJobStatus(s string) JobStatus {
	switch JobStatus(s) {
	case JobWaiting, JobInProgress, JobSuccess, JobFailure, JobDeleted:
		return JobStatus(s)
	default:
		return JobUnknown
	}
}

// Terminal reports whether the status ends a job's lifecycle.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSuccess, JobFailure, JobDeleted:
		return true
	default:
		return false
	}
}

// Job represents a single asynchronous analyzer or responder execution.
type Job struct {
	ID           string    `json:"id"`
	AnalyzerID   string    `json:"analyzerId,omitempty"`
	AnalyzerName string    `json:"analyzerName,omitempty"`
	Status       JobStatus `json:"status"`
	Data         string    `json:"data,omitempty"`
	DataType     string    `json:"dataType,omitempty"`
	Message      string    `json:"message,omitempty"`
	Date         Timestamp `json:"date,omitzero"`
	StartDate    Timestamp `json:"startDate,omitzero"`
	EndDate      Timestamp `json:"endDate,omitzero"`

	// Report is populated on terminal jobs when the server inlines it.
	Report json.RawMessage `json:"report,omitempty"`
}

// JobReport is the result payload of a finished job.
type JobReport struct {
	Success      bool            `json:"success"`
	Summary      map[string]any  `json:"summary,omitempty"`
	Artifacts    []Observable    `json:"artifacts,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Full         json.RawMessage `json:"full,omitempty"`
}

// Action represents a responder execution launched through the connector.
type Action struct {
	ID            string          `json:"_id,omitempty"`
	ResponderID   string          `json:"responderId"`
	ResponderName string          `json:"responderName,omitempty"`
	CortexID      string          `json:"cortexId,omitempty"`
	ObjectType    string          `json:"objectType"`
	ObjectID      string          `json:"objectId"`
	Status        JobStatus       `json:"status,omitempty"`
	Report        json.RawMessage `json:"report,omitempty"`
}

// PollResult is the outcome of polling a job to completion.
//
// TimedOut and transient transport failures are outcomes, not errors: the
// caller decides whether to proceed without analysis results.
type PollResult struct {
	// Status is the last status observed. Terminal when TimedOut is false.
	Status JobStatus
	// Report is the job's result payload, fetched once after the job
	// reached a terminal status. Nil on timeout.
	Report *JobReport
	// Elapsed is the wall-clock duration spent polling.
	Elapsed time.Duration
	// Attempts is the number of status queries issued.
	Attempts int
	// TimedOut is true when the wait budget was exhausted before the job
	// reached a terminal status.
	TimedOut bool
}

// PageOptions configures pagination for search requests. The query API
// returns bare result arrays without a total, so iteration continues until
// a page comes back shorter than the requested limit.
type PageOptions struct {
	Offset int
	Limit  int
}
