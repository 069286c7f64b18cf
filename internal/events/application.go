package events

import "github.com/jobdesk/autoapply/internal/entities"

var ApplicationSubmittedTopic = "ApplicationSubmittedEvent"

type ApplicationSubmitted struct {
	UserID  int64
	Posting entities.JobPosting
	Receipt entities.DeliveryReceipt
	Source  entities.ApplicationSource
}

var ApplicationFailedTopic = "ApplicationFailedEvent"

type ApplicationFailed struct {
	UserID  int64
	Posting entities.JobPosting
	Reason  string
}
