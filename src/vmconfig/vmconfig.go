// Package vmconfig reads and mutates guest configuration files. The
// storage lifecycle only touches two things in them, the guest UUID and
// the per-interface MAC addresses; everything else is preserved
// byte-for-byte.
package vmconfig

import (
	"fmt"
	"os"
	"strings"
)

// Config is one guest's key="value" configuration file, kept as raw
// lines so comments and unknown settings survive a round trip.
type Config struct {
	path  string
	lines []string
}

// NetworkInterface is one declared network<N>_type entry.
type NetworkInterface struct {
	Index int
	Type  string
	MAC   string
}

// Load reads a guest config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return &Config{path: path, lines: lines}, nil
}

// Save writes the config back to the file it was loaded from.
func (c *Config) Save() error {
	return os.WriteFile(c.path, []byte(strings.Join(c.lines, "\n")+"\n"), 0o644)
}

// Get returns the value of key, with surrounding quotes stripped, or ""
// when the key is not set.
func (c *Config) Get(key string) string {
	for _, line := range c.lines {
		if k, v, ok := splitLine(line); ok && k == key {
			return v
		}
	}
	return ""
}

// Set replaces the value of key, appending the setting when it was not
// present before.
func (c *Config) Set(key, value string) {
	entry := fmt.Sprintf("%s=\"%s\"", key, value)
	for i, line := range c.lines {
		if k, _, ok := splitLine(line); ok && k == key {
			c.lines[i] = entry
			return
		}
	}
	c.lines = append(c.lines, entry)
}

// UUID returns the guest's uuid setting.
func (c *Config) UUID() string { return c.Get("uuid") }

// SetUUID replaces the guest's uuid setting.
func (c *Config) SetUUID(uuid string) { c.Set("uuid", uuid) }

// NetworkInterfaces enumerates network<N>_type declarations by
// increasing index, stopping at the first undefined one.
func (c *Config) NetworkInterfaces() []NetworkInterface {
	var out []NetworkInterface
	for i := 0; ; i++ {
		ifType := c.Get(fmt.Sprintf("network%d_type", i))
		if ifType == "" {
			return out
		}
		out = append(out, NetworkInterface{
			Index: i,
			Type:  ifType,
			MAC:   c.Get(fmt.Sprintf("network%d_mac", i)),
		})
	}
}

// SetMAC replaces the MAC address of the interface at index.
func (c *Config) SetMAC(index int, mac string) {
	c.Set(fmt.Sprintf("network%d_mac", index), mac)
}

func splitLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	value = strings.Trim(value, `"'`)
	return strings.TrimSpace(key), value, true
}
