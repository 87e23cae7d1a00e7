package domain

// CheckUnlinkAllowed applies the unlink policy to the user's current credentials.
// Every IdentityLinkStore calls it inside its atomic section so the check and the
// delete see the same state.
func CheckUnlinkAllowed(linked []*ProviderCredential, provider ProviderID) error {
	found := false
	for _, c := range linked {
		if c != nil && c.ProviderID == provider {
			found = true
			break
		}
	}
	if !found {
		return ErrNotLinked
	}
	if len(linked) <= 1 {
		return ErrLastProviderInvariant
	}
	return nil
}
