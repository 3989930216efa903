/*
Package config loads engine settings from YAML or JSON.

# Typed Access

Config wraps a map[string]any with accessors that return a default when a
key is missing or has the wrong type. Keys may be dotted paths into nested
sections:

	cfg, err := config.FromFile("flowdoc.yaml")
	mode := cfg.String("collab.mode", "push")
	limit := cfg.Int("historyLimit", 40)

Durations accept Go duration strings ("1.5s", "250ms"). Bare numbers are
milliseconds.

# Settings

LoadSettings turns a Config into Settings, filling defaults and reporting
every invalid field at once:

	s, err := config.LoadSettings(cfg)
	st, err := s.OpenStore()
	agent, err := form.New(surface, s.FormOptions(st, logger)...)
	client, err := collab.New(s.Collab.BaseURL, agent.Graph(), s.CollabOptions(logger)...)

Config is safe for concurrent reads as long as the wrapped map is not
modified.
*/
package config
