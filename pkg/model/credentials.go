package model

// Credentials holds SSH login material for the lifetime of the process.
// Never persisted and never logged; passed by pointer into collectors and
// the reconciler.
type Credentials struct {
	Username     string
	Password     string
	EnableSecret string
}

// String implements fmt.Stringer so accidental formatting never leaks secrets.
func (c *Credentials) String() string {
	return "credentials{" + c.Username + ":***}"
}

// InventoryConfig carries the remote-inventory endpoint and token.
// Like Credentials it lives in memory only.
type InventoryConfig struct {
	URL   string
	Token string
}

// String keeps the token out of log output.
func (c *InventoryConfig) String() string {
	return "inventory{" + c.URL + "}"
}
