package service

import (
	"fmt"
	"strconv"
	"sync"

	"voltxt/config"
	"voltxt/internal/repository"
)

// Setting keys as stored in the voltxt_settings table.
const (
	SettingAPIKey            = "api_key"
	SettingNetwork           = "network"
	SettingExpiryHours       = "expiry_hours"
	SettingCompletedStatusID = "completed_status_id"
	SettingPendingStatusID   = "pending_status_id"
	SettingCancelledStatusID = "cancelled_status_id"
	SettingFailedStatusID    = "failed_status_id"
	SettingWebhookSecret     = "webhook_secret"
	SettingDebug             = "debug"
)

// GatewaySettings is the merchant's Voltxt configuration as one value object.
// Components receive it by value; there is no ambient global.
type GatewaySettings struct {
	APIKey            string `json:"api_key"`
	Network           string `json:"network"`
	ExpiryHours       int    `json:"expiry_hours"`
	CompletedStatusID int    `json:"completed_status_id"`
	PendingStatusID   int    `json:"pending_status_id"`
	CancelledStatusID int    `json:"cancelled_status_id"`
	FailedStatusID    int    `json:"failed_status_id"`
	WebhookSecret     string `json:"webhook_secret,omitempty"`
	Debug             bool   `json:"debug"`
}

// IsTerminal reports whether statusID is one of the three terminal order
// statuses. The idempotency gate is built on this check.
func (g GatewaySettings) IsTerminal(statusID int) bool {
	return statusID == g.CompletedStatusID ||
		statusID == g.FailedStatusID ||
		statusID == g.CancelledStatusID
}

// Validate applies the same rules the admin screen enforces.
func (g GatewaySettings) Validate() error {
	if g.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if len(g.APIKey) != 32 {
		return fmt.Errorf("api key must be exactly 32 characters long")
	}
	if g.Network != "testnet" && g.Network != "mainnet" {
		return fmt.Errorf(`network must be either "testnet" or "mainnet"`)
	}
	if g.ExpiryHours < 1 || g.ExpiryHours > 168 {
		return fmt.Errorf("expiry hours must be between 1 and 168")
	}
	return nil
}

// SettingsService serves the current merchant settings from an in-memory
// snapshot backed by the settings table. Reads are cheap; updates validate,
// persist, then swap the snapshot.
type SettingsService struct {
	repo    *repository.SettingRepository
	mu      sync.RWMutex
	current GatewaySettings
}

func NewSettingsService(repo *repository.SettingRepository, defaults *config.VoltxtConfig) (*SettingsService, error) {
	if err := repo.SeedDefaults(map[string]string{
		SettingAPIKey:            defaults.APIKey,
		SettingNetwork:           defaults.Network,
		SettingExpiryHours:       strconv.Itoa(defaults.ExpiryHours),
		SettingCompletedStatusID: strconv.Itoa(defaults.CompletedStatusID),
		SettingPendingStatusID:   strconv.Itoa(defaults.PendingStatusID),
		SettingCancelledStatusID: strconv.Itoa(defaults.CancelledStatusID),
		SettingFailedStatusID:    strconv.Itoa(defaults.FailedStatusID),
		SettingWebhookSecret:     defaults.WebhookSecret,
		SettingDebug:             boolValue(defaults.Debug),
	}); err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	s := &SettingsService{repo: repo}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active settings snapshot.
func (s *SettingsService) Current() GatewaySettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates, persists and activates new settings.
func (s *SettingsService) Update(g GatewaySettings) error {
	if err := g.Validate(); err != nil {
		return err
	}
	values := map[string]string{
		SettingAPIKey:            g.APIKey,
		SettingNetwork:           g.Network,
		SettingExpiryHours:       strconv.Itoa(g.ExpiryHours),
		SettingCompletedStatusID: strconv.Itoa(g.CompletedStatusID),
		SettingPendingStatusID:   strconv.Itoa(g.PendingStatusID),
		SettingCancelledStatusID: strconv.Itoa(g.CancelledStatusID),
		SettingFailedStatusID:    strconv.Itoa(g.FailedStatusID),
		SettingWebhookSecret:     g.WebhookSecret,
		SettingDebug:             boolValue(g.Debug),
	}
	for k, v := range values {
		if err := s.repo.Set(k, v); err != nil {
			return fmt.Errorf("save setting %s: %w", k, err)
		}
	}
	s.mu.Lock()
	s.current = g
	s.mu.Unlock()
	return nil
}

func (s *SettingsService) reload() error {
	values, err := s.repo.GetAll()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = GatewaySettings{
		APIKey:            values[SettingAPIKey],
		Network:           values[SettingNetwork],
		ExpiryHours:       intValue(values[SettingExpiryHours], 24),
		CompletedStatusID: intValue(values[SettingCompletedStatusID], 2),
		PendingStatusID:   intValue(values[SettingPendingStatusID], 1),
		CancelledStatusID: intValue(values[SettingCancelledStatusID], 7),
		FailedStatusID:    intValue(values[SettingFailedStatusID], 10),
		WebhookSecret:     values[SettingWebhookSecret],
		Debug:             values[SettingDebug] == "1",
	}
	return nil
}

func intValue(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
