package models

import (
	"strings"
	"time"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

// ChannelType is the transport a notification channel delivers over.
type ChannelType string

// Notification channel types.
const (
	ChannelTypeEmail   ChannelType = "email"
	ChannelTypeSMS     ChannelType = "sms"
	ChannelTypeSlack   ChannelType = "slack"
	ChannelTypeWebhook ChannelType = "webhook"
)

// targetRules holds the constraint a channel's target must satisfy per type.
var targetRules = map[ChannelType]string{
	ChannelTypeEmail:   "email",
	ChannelTypeSMS:     "e164",
	ChannelTypeSlack:   "url,startswith=https://",
	ChannelTypeWebhook: "url",
}

// NotificationChannel is where a project wants to hear about status
// changes of its routines.
type NotificationChannel struct {
	ID        string           `json:"id" yaml:"id" validate:"required,startswith=nc-"`
	ProjectID string           `json:"projectId" yaml:"projectId" validate:"required"`
	Name      string           `json:"name" yaml:"name" validate:"required,max=100"`
	Type      ChannelType      `json:"type" yaml:"type" validate:"required,oneof=email sms slack webhook"`
	Target    string           `json:"target" yaml:"target" validate:"required,max=2048"`
	NotifyOn  []TimelineStatus `json:"notifyOn" yaml:"notifyOn" validate:"min=1,unique,dive,oneof=up impaired down timeout unknown"`
	Enabled   bool             `json:"enabled" yaml:"enabled"`
	CreatedAt time.Time        `json:"createdAt" yaml:"createdAt" validate:"required"`
	UpdatedAt time.Time        `json:"updatedAt" yaml:"updatedAt" validate:"required"`
}

var _ Entity = (*NotificationChannel)(nil)

// NewNotificationChannel creates a channel, assigning an id when missing.
func NewNotificationChannel(in NotificationChannel, now time.Time) (*NotificationChannel, error) {
	c := in
	if strings.TrimSpace(c.ID) == "" {
		c.ID = idgen.New(idgen.PrefixNotificationChannel)
	}

	stamp(&c.CreatedAt, &c.UpdatedAt, now)
	c.Normalize()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Wants reports whether the channel subscribes to a status.
func (c *NotificationChannel) Wants(status TimelineStatus) bool {
	if !c.Enabled {
		return false
	}

	for _, s := range c.NotifyOn {
		if s == status {
			return true
		}
	}

	return false
}

// Normalize implements Entity.
func (c *NotificationChannel) Normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.Name = strings.TrimSpace(c.Name)
	c.Target = strings.TrimSpace(c.Target)

	if c.Type == ChannelTypeEmail {
		c.Target = strings.ToLower(c.Target)
	}

	if len(c.NotifyOn) == 0 {
		c.NotifyOn = []TimelineStatus{TimelineStatusDown, TimelineStatusTimeout}
	}

	c.CreatedAt = normalizeTime(c.CreatedAt)
	c.UpdatedAt = normalizeTime(c.UpdatedAt)
}

// Validate implements Entity.
func (c *NotificationChannel) Validate() error {
	verr := validateStruct(c)

	if rule, ok := targetRules[c.Type]; ok && c.Target != "" {
		if err := validate.Var(c.Target, rule); err != nil {
			verr.add("notificationChannel.target", rule, "is not a valid "+string(c.Type)+" target")
		}
	}

	return verr.orNil()
}
