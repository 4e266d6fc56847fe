// Package contracts encodes the minimum expectations for the built-in
// onboarding steps and validates workflow files against them before a run
// starts.
package contracts

// Contract describes what a built-in step consumes and produces, and which
// steps must run before it.
type Contract struct {
	ModuleID string
	Inputs   []string
	Outputs  []string
	After    []string
	Clients  []string
}

var stepContracts = map[string]Contract{
	"welcome-email": {
		ModuleID: "welcome-email",
		Outputs:  []string{"welcome-email-doc"},
		Clients:  []string{"llm"},
	},
	"gmail-send": {
		ModuleID: "gmail-send",
		Inputs:   []string{"welcome-email-doc"},
		Outputs:  []string{"email-sent"},
		After:    []string{"welcome-email"},
		Clients:  []string{"mail"},
	},
	"asana-access": {
		ModuleID: "asana-access",
		Outputs:  []string{"asana-invited", "asana-task"},
		Clients:  []string{"tasks"},
	},
	"mentor-match": {
		ModuleID: "mentor-match",
		Outputs:  []string{"mentor"},
	},
	"intro-call": {
		ModuleID: "intro-call",
		Inputs:   []string{"mentor"},
		Outputs:  []string{"intro-call"},
		After:    []string{"mentor-match"},
		Clients:  []string{"calendar"},
	},
}

// ContractForModule returns the contract for the given built-in step, if one exists.
func ContractForModule(moduleID string) (Contract, bool) {
	contract, ok := stepContracts[moduleID]
	return contract, ok
}

// BuiltinModuleIDs lists every step covered by a contract.
func BuiltinModuleIDs() []string {
	ids := make([]string, 0, len(stepContracts))
	for id := range stepContracts {
		ids = append(ids, id)
	}
	return ids
}
