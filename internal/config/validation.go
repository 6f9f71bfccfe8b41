package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs configuration validation (config is loaded
// once at startup and must be sane before the runtime constructs anything
// from it).
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateApp()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateTimeouts()...)
	errs = append(errs, c.validateRisk()...)
	errs = append(errs, c.validateACE()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errs ValidationErrors
	if c.App.Name == "" {
		errs = append(errs, ValidationError{"app.name", "application name is required"})
	}
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		errs = append(errs, ValidationError{"app.environment", "must be one of development, staging, production"})
	}
	return errs
}

func (c *Config) validateModels() ValidationErrors {
	var errs ValidationErrors
	if c.Models.RoutingModel == "" {
		errs = append(errs, ValidationError{"models.routing_model", "routing model identifier is required"})
	}
	if c.Models.ReasoningModel == "" {
		errs = append(errs, ValidationError{"models.reasoning_model", "reasoning model identifier is required"})
	}
	if c.Models.RiskModel == "" {
		errs = append(errs, ValidationError{"models.risk_model", "risk model identifier is required"})
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		errs = append(errs, ValidationError{"models.temperature", "must be between 0 and 2"})
	}
	return errs
}

func (c *Config) validateTimeouts() ValidationErrors {
	var errs ValidationErrors
	if c.Timeouts.SpecialistMS <= 0 {
		errs = append(errs, ValidationError{"timeouts.specialist_ms", "must be positive"})
	}
	if c.Timeouts.OrchestratorMS <= 0 {
		errs = append(errs, ValidationError{"timeouts.orchestrator_ms", "must be positive"})
	}
	return errs
}

func (c *Config) validateRisk() ValidationErrors {
	var errs ValidationErrors
	if c.Risk.PositionSizeLimitPct <= 0 || c.Risk.PositionSizeLimitPct > 100 {
		errs = append(errs, ValidationError{"risk.position_size_limit_pct", "must be between 0 and 100"})
	}
	if c.Risk.WashSaleWindowDays <= 0 {
		errs = append(errs, ValidationError{"risk.wash_sale_window_days", "must be positive"})
	}
	return errs
}

func (c *Config) validateACE() ValidationErrors {
	var errs ValidationErrors
	for field, v := range map[string]float64{
		"ace.turn_penalty":     c.ACE.TurnPenalty,
		"ace.block_factor":     c.ACE.BlockFactor,
		"ace.flag_factor":      c.ACE.FlagFactor,
		"ace.resolution_bonus": c.ACE.ResolutionBonus,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, ValidationError{field, "must be between 0 and 1"})
		}
	}
	return errs
}
