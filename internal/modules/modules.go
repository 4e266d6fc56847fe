package modules

import (
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/modules/asana_access"
	"github.com/onboardia/onboardia/internal/modules/gmail_send"
	"github.com/onboardia/onboardia/internal/modules/intro_call"
	"github.com/onboardia/onboardia/internal/modules/mentor_match"
	"github.com/onboardia/onboardia/internal/modules/welcome_email"
)

// RegisterBuiltins installs all of the built-in module factories into the
// provided registry.
func RegisterBuiltins(reg *module.Registry) {
	if reg == nil {
		return
	}
	welcome_email.Register(reg)
	gmail_send.Register(reg)
	asana_access.Register(reg)
	mentor_match.Register(reg)
	intro_call.Register(reg)
}
