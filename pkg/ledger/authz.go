package ledger

// Access rules are a single pure function of (identity, product
// state) so they stay auditable and testable in isolation. There is
// no role hierarchy: the owner is always implicitly authorized, and
// everything else is membership in the ordered actor set.

// canAppend reports whether actor may append custody events to p.
func canAppend(p Product, actor string) bool {
	if actor == p.Owner {
		return true
	}
	return containsActor(p.AuthorizedActors, actor)
}

// isOwner reports whether actor holds the owner capability: transfer,
// grant/revoke access, activate/deactivate.
func isOwner(p Product, actor string) bool {
	return actor == p.Owner
}

func containsActor(actors []string, actor string) bool {
	for _, a := range actors {
		if a == actor {
			return true
		}
	}
	return false
}

// removeActor returns actors without actor, preserving order.
func removeActor(actors []string, actor string) []string {
	out := actors[:0:0]
	for _, a := range actors {
		if a != actor {
			out = append(out, a)
		}
	}
	return out
}
