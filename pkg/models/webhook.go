package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InboundPayload is the JSON body posted by the automation platform when a
// contact writes to the account.
type InboundPayload struct {
	UserAPIKey   string     `json:"userApiKey"`
	ContactPhone string     `json:"contactPhone"`
	ContactName  *string    `json:"contactName,omitempty"`
	Message      string     `json:"message"`
	Timestamp    any        `json:"timestamp,omitempty"` // epoch seconds, epoch millis or ISO-8601
	StageID      FlexibleID `json:"stageId,omitempty"`
}

// OutboundPayload is the JSON body posted when the account (or an agent acting
// for it) wrote to a contact outside of the dashboard.
type OutboundPayload struct {
	UserAPIKey   string `json:"userApiKey"`
	ContactPhone string `json:"contactPhone"`
	Message      string `json:"message"`
	Timestamp    any    `json:"timestamp,omitempty"`
}

type IngestResponse struct {
	Success   bool `json:"success"`
	MessageID uint `json:"messageId"`
}

// FlexibleID accepts a positive integer sent either as a JSON number or as a
// numeric string. A nil pointer means "not supplied".
type FlexibleID struct {
	Value *uint
}

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		f.Value = nil
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			f.Value = nil
			return nil
		}
	}

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return fmt.Errorf("invalid id %s", string(data))
	}
	id := uint(n)
	f.Value = &id
	return nil
}

func (f FlexibleID) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.Value)
}

// StageRef and FunnelRef are the nested objects of a ContactSummary.
type StageRef struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type FunnelRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ContactSummary is the flattened contact shape served to automation tools.
type ContactSummary struct {
	ID            uint       `json:"id"`
	Name          *string    `json:"name"`
	Phone         string     `json:"phone"`
	Stage         *StageRef  `json:"stage"`
	Funnel        *FunnelRef `json:"funnel"`
	LastMessage   *string    `json:"lastMessage"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
}

// Notification is posted to the external automation endpoint after an
// outbound message is sent from the dashboard.
type Notification struct {
	MessageID    uint      `json:"messageId"`
	Message      string    `json:"message"`
	ContactPhone string    `json:"contactPhone"`
	ContactName  *string   `json:"contactName"`
	Direction    string    `json:"direction"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       uint      `json:"userId"`
	UserEmail    string    `json:"userEmail"`
	FileURL      string    `json:"fileUrl,omitempty"`
	FileType     string    `json:"fileType,omitempty"`
	FileName     string    `json:"fileName,omitempty"`
}
