package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadNotification = "leads.notify_sales"

type LeadNotificationPayload struct {
	LeadID         string `json:"leadId"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName,omitempty"`
	Phone          string `json:"phone"`
	AppInterest    string `json:"appInterest"`
	Category       string `json:"category,omitempty"`
	RestaurantName string `json:"restaurantName,omitempty"`
}

func NewLeadNotificationTask(payload LeadNotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadNotification, data), nil
}

func ParseLeadNotificationPayload(task *asynq.Task) (LeadNotificationPayload, error) {
	var payload LeadNotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadNotificationPayload{}, err
	}
	return payload, nil
}
