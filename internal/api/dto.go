package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/renshaw/taskwire/internal/models"
)

// SendNotificationRequest is the body of POST /notifications/send, used by
// other subsystems (task assignment, reminders) to push on an employee's
// behalf.
type SendNotificationRequest struct {
	EmployeeID  string `json:"employeeId"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	TaskID      string `json:"taskId,omitempty"`
	ProjectName string `json:"projectName,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
}

// Validate checks the request body. Type and priority default when empty
// and must otherwise come from the closed sets.
func (r SendNotificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EmployeeID, validation.Required),
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Message, validation.Required),
		validation.Field(&r.Type, validation.In(
			models.TypeTaskAssigned,
			models.TypeTaskReminder,
			models.TypeTaskUpdate,
		)),
		validation.Field(&r.Priority, validation.In(
			models.PriorityLow,
			models.PriorityMedium,
			models.PriorityHigh,
			models.PriorityUrgent,
		)),
	)
}

// SendNotificationResponse reports the delivery outcome.
type SendNotificationResponse struct {
	Queued      bool `json:"queued"`
	DeliveredTo int  `json:"deliveredTo"`
}

// PendingListResponse wraps a drained mailbox.
type PendingListResponse struct {
	Notifications []models.PendingNotification `json:"notifications"`
	Count         int                          `json:"count"`
}
