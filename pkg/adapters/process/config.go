package process

// Config describes how to launch a plugin process.
type Config struct {
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Dir         string            `yaml:"dir" json:"dir"`
}

// IsZero reports whether no command is configured.
func (c Config) IsZero() bool {
	return c.Command == ""
}
