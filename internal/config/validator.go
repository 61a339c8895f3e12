package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/owlbridge/owlbridge/internal/domain/auth"
)

// RegisterCustomValidators registers owlbridge-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	if err := v.RegisterValidation("peer_sync", validatePeerSync); err != nil {
		return fmt.Errorf("failed to register peer_sync validator: %w", err)
	}
	return nil
}

// validateDuration accepts a Go duration string that is not negative.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// validatePeerSync accepts "ack" or "delay".
func validatePeerSync(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "ack", "delay":
		return true
	}
	return false
}

// Validate validates the Config using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validatePeer(); err != nil {
		return err
	}

	return c.validateAPIKeys()
}

// validatePeer checks rules that span more than one peer field.
func (c *Config) validatePeer() error {
	if strings.TrimSpace(c.Peer.Command) == "" {
		return errors.New("peer.command is required")
	}
	if c.Peer.Timeout != "" && c.PeerTimeout() == 0 {
		return errors.New("peer.timeout must be greater than zero")
	}
	return nil
}

// validateAPIKeys ensures key names are unique and every hash is in a
// supported format.
func (c *Config) validateAPIKeys() error {
	seen := make(map[string]struct{}, len(c.Auth.APIKeys))
	for i, key := range c.Auth.APIKeys {
		if _, dup := seen[key.Name]; dup {
			return fmt.Errorf("auth.api_keys[%d]: duplicate name %q", i, key.Name)
		}
		seen[key.Name] = struct{}{}

		if auth.DetectHashType(key.KeyHash) == auth.HashUnknown {
			return fmt.Errorf("auth.api_keys[%d]: key_hash must be an argon2id hash or \"sha256:<hex>\"", i)
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "duration":
		return fmt.Sprintf("%s must be a duration like \"30s\" or \"5m\"", field)
	case "peer_sync":
		return fmt.Sprintf("%s must be 'ack' or 'delay'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
