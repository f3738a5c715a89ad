package push

import "encoding/json"

// Policy is a registered credential-locking rule: Evaluate inspects
// the credential's decoded policies
// payload and reports whether the credential still satisfies it.
type Policy interface {
	Name() string
	Evaluate(data map[string]any) bool
}

// reevaluatePolicies re-runs the registered policies against a
// credential's stored policies JSON, locking or unlocking it in place.
// Called on every getCredentials/getCredential read: a
// credential locked by a policy that now passes is unlocked, and an
// unlocked credential whose policy now fails is locked by that policy's
// name.
func reevaluatePolicies(cred *PushCredential, registry []Policy) {
	if cred == nil || len(cred.Policies) == 0 || len(registry) == 0 {
		return
	}
	var data map[string]any
	if err := json.Unmarshal(cred.Policies, &data); err != nil {
		return
	}

	if cred.LockingPolicy != "" {
		for _, p := range registry {
			if p.Name() == cred.LockingPolicy {
				if p.Evaluate(data) {
					cred.LockingPolicy = ""
				}
				return
			}
		}
		return
	}

	for _, p := range registry {
		if !p.Evaluate(data) {
			cred.LockingPolicy = p.Name()
			return
		}
	}
}
