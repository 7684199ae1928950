package iamlens

// Subcommands and flags understood by iam-lens.
const (
	cmdSimulate = "simulate"
	cmdWhoCan   = "who-can"

	flagPrincipal       = "--principal"
	flagAction          = "--action"
	flagActions         = "--actions"
	flagResource        = "--resource"
	flagResourceAccount = "--resource-account"
	flagContext         = "--context"
	flagVerbose         = "--verbose"
	flagCollectConfigs  = "--collectConfigs"
)

// BuildSimulateArgs returns the argument vector for a simulate call.
// Optional values are emitted only when non-empty and always in the same order;
// --collectConfigs is always last.
func BuildSimulateArgs(req SimulationRequest, collectConfigs string) []string {
	args := make([]string, 0, 7+3*len(req.ContextKeys)+4)
	args = append(args, cmdSimulate, flagPrincipal, req.Principal, flagAction, req.Action)
	if req.Resource != "" {
		args = append(args, flagResource, req.Resource)
	}
	if req.ResourceAccount != "" {
		args = append(args, flagResourceAccount, req.ResourceAccount)
	}
	for _, kv := range req.ContextKeys {
		args = append(args, flagContext, kv.Key, kv.Value)
	}
	if req.Verbose {
		args = append(args, flagVerbose)
	}
	return append(args, flagCollectConfigs, collectConfigs)
}

// BuildWhoCanArgs returns the argument vector for a who-can call.
// An empty action list omits --actions entirely.
func BuildWhoCanArgs(req AccessQueryRequest, collectConfigs string) []string {
	args := make([]string, 0, 3+1+len(req.Actions)+4)
	args = append(args, cmdWhoCan, flagResource, req.Resource)
	if len(req.Actions) > 0 {
		args = append(args, flagActions)
		args = append(args, req.Actions...)
	}
	if req.ResourceAccount != "" {
		args = append(args, flagResourceAccount, req.ResourceAccount)
	}
	return append(args, flagCollectConfigs, collectConfigs)
}
