package types

// ProviderRule binds root resources to a resolve map provider. Matches
// are evaluated in rule order; the first rule with a matching pattern
// wins.
//
// Patterns:
//   - "ext:.zip"      file extension, case-insensitive
//   - "mime:image/*"  sniffed MIME type, trailing '*' is a prefix match
//   - "*"             any resource
type ProviderRule struct {
	Provider ProviderName `yaml:"provider" mapstructure:"provider"`
	Matches  []string     `yaml:"matches" mapstructure:"matches"`
	// Nested rules are applied again to entries discovered while scanning
	// a container, so embedded containers get their own keys.
	Nested bool `yaml:"nested,omitempty" mapstructure:"nested"`
}

// ProviderSelection is the provider chosen for a resource.
type ProviderSelection struct {
	Provider ProviderName
	Nested   bool
}

// DefaultProviderRules is used when the configuration carries none.
func DefaultProviderRules() []ProviderRule {
	return []ProviderRule{
		{Provider: ProviderSnapshot, Matches: []string{"ext:.rmap"}},
		{Provider: ProviderGLB, Matches: []string{"ext:.glb", "mime:model/gltf-binary"}, Nested: true},
		{Provider: ProviderUSDZ, Matches: []string{"ext:.usdz"}, Nested: true},
		{Provider: ProviderZip, Matches: []string{"ext:.zip", "ext:.rpk", "mime:application/zip"}},
		{Provider: ProviderFile, Matches: []string{"*"}},
	}
}
