package prompt

import "strings"

// NamedOption is a selectable preset: a short key and the text used in prompts.
type NamedOption struct {
	Key  string
	Name string
}

var lightingOptions = []NamedOption{
	{Key: "soft", Name: "soft studio lighting"},
	{Key: "harsh", Name: "harsh sunlight with crisp shadows"},
	{Key: "morning", Name: "natural morning light"},
	{Key: "sunset", Name: "warm sunset glow"},
	{Key: "neon", Name: "urban neon lights"},
}

var atmosphereOptions = []NamedOption{
	{Key: "bright", Name: "clear and bright"},
	{Key: "misty", Name: "dreamy and misty"},
	{Key: "dramatic", Name: "dramatic and high contrast"},
	{Key: "vintage", Name: "vintage and nostalgic"},
	{Key: "vivid", Name: "playful and vibrant"},
}

func LightingOptions() []NamedOption {
	return append([]NamedOption(nil), lightingOptions...)
}

func AtmosphereOptions() []NamedOption {
	return append([]NamedOption(nil), atmosphereOptions...)
}

// LightingName resolves a preset key to its description. Anything else is
// treated as a free-form description and returned trimmed.
func LightingName(value string) string {
	return resolve(lightingOptions, value)
}

func AtmosphereName(value string) string {
	return resolve(atmosphereOptions, value)
}

func resolve(opts []NamedOption, value string) string {
	value = strings.TrimSpace(value)
	if o, ok := lookup(opts, value); ok {
		return o.Name
	}
	return value
}

func lookup(opts []NamedOption, key string) (NamedOption, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, o := range opts {
		if o.Key == key {
			return o, true
		}
	}
	return NamedOption{}, false
}
