package shared

import "github.com/go-playground/validator/v10"

// Validate is the shared validator instance used by all HTTP handlers.
var Validate = validator.New(validator.WithRequiredStructEnabled())
