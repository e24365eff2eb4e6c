package email

import "time"

// EmailLog is the audit row written for every delivery attempt. The Recipient
// column is named "recipient" because "to" is reserved in SQL.
type EmailLog struct {
	ID          string    `json:"id"`
	Recipient   string    `json:"to"`
	Subject     string    `json:"subject"`
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	UserID      string    `json:"userId,omitempty"`
	RequestedBy string    `json:"requestedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type SendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type SendEmailResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ListLogsResponse struct {
	Status string     `json:"status"`
	Data   []EmailLog `json:"data"`
	Count  int        `json:"count"`
}

type ServiceTokenRequest struct {
	ServiceName string `json:"serviceName"`
	SecretKey   string `json:"secretKey"`
}

type ServiceTokenResponse struct {
	Status    string `json:"status"`
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}
