package task

type PageRetryTask struct {
	CategoryUID string `json:"category_uid"` // Leaf category the page belongs to
	Page        int    `json:"page"`         // Failed page number
	RetryCount  int    `json:"retry_count"`  // Attempts made so far for this page
	Error       string `json:"error"`        // Error message from the last failure
}

func (t *PageRetryTask) TaskType() string {
	return "PageRetryTask"
}

func (t *PageRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
