package models

import (
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	StatusReceived = "received"
	StatusSent     = "sent"
)

// Account is a tenant. It owns funnels and contacts.
type Account struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	APIKey       string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"api_key"`
	Role         string    `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Funnel groups an ordered set of stages.
type Funnel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;index" json:"account_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Stages    []Stage   `gorm:"foreignKey:FunnelID;constraint:OnDelete:CASCADE;" json:"stages"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Funnel) TableName() string {
	return "funnels"
}

// Stage is one step of a funnel. Order values may tie; ties sort by ID.
type Stage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FunnelID  uint      `gorm:"not null;index" json:"funnel_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Order     int       `gorm:"column:sort_order;not null;default:99" json:"order"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Stage) TableName() string {
	return "stages"
}

// Contact is a lead, unique per (account, phone).
type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;uniqueIndex:idx_contacts_account_phone" json:"account_id"`
	Phone     string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_contacts_account_phone" json:"phone"`
	Name      *string   `gorm:"type:varchar(255)" json:"name"`
	StageID   *uint     `gorm:"index" json:"stage_id"`
	Stage     *Stage    `gorm:"foreignKey:StageID" json:"stage,omitempty"`
	Messages  []Message `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE;" json:"messages,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Message is an append-only ledger entry.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ContactID uint      `gorm:"not null;index:idx_messages_contact_ts,priority:1" json:"contact_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Direction string    `gorm:"type:varchar(10);not null" json:"direction"`
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	Timestamp time.Time `gorm:"not null;index:idx_messages_contact_ts,priority:2" json:"timestamp"`
	FileURL   *string   `gorm:"type:text" json:"file_url,omitempty"`
	FileType  *string   `gorm:"type:varchar(100)" json:"file_type,omitempty"`
	FileName  *string   `gorm:"type:varchar(255)" json:"file_name,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Media records an uploaded attachment stored on disk.
type Media struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccountID    *uint     `gorm:"index" json:"account_id,omitempty"`
	Filename     string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"filename"`
	OriginalName string    `gorm:"type:varchar(255)" json:"original_name"`
	MimeType     string    `gorm:"type:varchar(100)" json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	UploadedAt   time.Time `gorm:"index" json:"uploaded_at"`
}

func (Media) TableName() string {
	return "media"
}

// All lists every model managed by AutoMigrate, parents first.
func All() []any {
	return []any{
		&Account{},
		&Funnel{},
		&Stage{},
		&Contact{},
		&Message{},
		&Media{},
	}
}
