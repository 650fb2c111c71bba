package config

// DefaultDenylistDomains returns a curated list of sensitive domains that are
// not timed when capture.exclude_sensitive is set. Subdomains of a listed
// domain are excluded too.
func DefaultDenylistDomains() []string {
	return []string{
		// Banking & Payments
		"chase.com",
		"bankofamerica.com",
		"wellsfargo.com",
		"citi.com",
		"capitalone.com",
		"schwab.com",
		"fidelity.com",
		"vanguard.com",
		"paypal.com",
		"venmo.com",

		// Password Managers
		"1password.com",
		"lastpass.com",
		"bitwarden.com",
		"dashlane.com",

		// Sign-in pages
		"accounts.google.com",
		"login.microsoftonline.com",
		"login.live.com",
		"okta.com",
		"auth0.com",

		// Healthcare
		"mychart.com",
		"kp.org",
		"healthcare.gov",

		// Government & Tax
		"irs.gov",
		"ssa.gov",
		"login.gov",
		"turbotax.intuit.com",
	}
}

// DefaultDenylistRegex returns host patterns excluded alongside
// DefaultDenylistDomains.
func DefaultDenylistRegex() []string {
	return []string{
		`(^|\.)xxx$`,
		`^mail\.`,
	}
}
