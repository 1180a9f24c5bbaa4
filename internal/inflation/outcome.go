package inflation

// ErrorKind classifies why a calculation produced no result
type ErrorKind string

const (
	ValidationRejected ErrorKind = "ValidationRejected"
	CpiNotFound        ErrorKind = "CpiNotFound"
	CpiInvalid         ErrorKind = "CpiInvalid"
	CurrentCpiNotFound ErrorKind = "CurrentCpiNotFound"
	RateMissing        ErrorKind = "RateMissing"
	RateComputeError   ErrorKind = "RateComputeError"
	ResultInvalid      ErrorKind = "ResultInvalid"
)

// IsDataFailure reports whether the kind comes from CPI or rate data rather
// than from request validation.
func (k ErrorKind) IsDataFailure() bool {
	return k != ValidationRejected && k != ""
}

// Failure is a classified, user-facing calculation failure
type Failure struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Status is the lifecycle state of an Outcome
type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the tagged result of one calculation.
// Result is meaningful only when Status is StatusSuccess.
type Outcome struct {
	Status          Status   `json:"status"`
	Result          float64  `json:"result"`
	ResultStatement string   `json:"result_statement,omitempty"`
	ShareStatement  string   `json:"share_statement,omitempty"`
	Warning         string   `json:"warning,omitempty"`
	UsingFallback   bool     `json:"using_fallback"`
	Failure         *Failure `json:"failure,omitempty"`
}

// Succeeded reports whether the outcome carries a numeric result
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

func loadingOutcome() Outcome {
	return Outcome{Status: StatusLoading}
}

func failureOutcome(f *Failure, usingFallback bool) Outcome {
	return Outcome{Status: StatusFailure, Failure: f, UsingFallback: usingFallback}
}
