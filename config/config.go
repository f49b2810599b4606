// Package config loads the instrument configuration: which serial
// ports exist and which pump hangs off which port.
package config

import (
	"fmt"
	"os"

	commserial "github.com/jt05610/syringe/comm/serial"
	"github.com/jt05610/syringe/devices"
	"gopkg.in/yaml.v3"
)

type Config struct {
	SerialPorts []SerialPort `yaml:"serial-ports"`
	Pumps       []Pump       `yaml:"pumps"`
}

type SerialPort struct {
	Port     string  `yaml:"port"`
	BaudRate int     `yaml:"baud-rate"`
	ByteSize int     `yaml:"byte-size"`
	Parity   string  `yaml:"parity"`
	StopBits float64 `yaml:"stop-bits"`
}

type Pump struct {
	Name       string  `yaml:"name"`
	Model      string  `yaml:"model"`
	Address    int     `yaml:"address"`
	SerialPort int     `yaml:"serial-port"`
	DiameterMM float64 `yaml:"diameter-mm"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	for i, s := range c.SerialPorts {
		if s.Port == "" {
			return fmt.Errorf("serial port %d: no port name", i)
		}
		if _, err := commserial.ParseParity(s.Parity); err != nil {
			return fmt.Errorf("serial port %d: %w", i, err)
		}
		if _, err := commserial.ParseStopBits(s.StopBits); err != nil {
			return fmt.Errorf("serial port %d: %w", i, err)
		}
	}
	for i, p := range c.Pumps {
		if !validModel(p.Model) {
			return fmt.Errorf("pump %d (%s): unknown model %q", i, p.Name, p.Model)
		}
		if p.Address < 0 || p.Address > 99 {
			return fmt.Errorf("pump %d (%s): address %d outside 0-99", i, p.Name, p.Address)
		}
		if devices.Model(p.Model) != devices.Sim &&
			(p.SerialPort < 0 || p.SerialPort >= len(c.SerialPorts)) {
			return fmt.Errorf("pump %d (%s): serial-port %d does not exist", i, p.Name, p.SerialPort)
		}
		if p.DiameterMM < 0 {
			return fmt.Errorf("pump %d (%s): negative diameter", i, p.Name)
		}
	}
	return nil
}

func validModel(name string) bool {
	for _, m := range devices.Models() {
		if devices.Model(name) == m {
			return true
		}
	}
	return false
}

// Comm translates a serial port entry into the transport settings.
func (s *SerialPort) Comm() (*commserial.Config, error) {
	parity, err := commserial.ParseParity(s.Parity)
	if err != nil {
		return nil, err
	}
	stop, err := commserial.ParseStopBits(s.StopBits)
	if err != nil {
		return nil, err
	}
	cfg := &commserial.Config{
		Port:     s.Port,
		Baud:     s.BaudRate,
		DataBits: s.ByteSize,
		Parity:   parity,
		StopBits: stop,
	}
	if cfg.Baud == 0 {
		cfg.Baud = commserial.DefaultConfig.Baud
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = commserial.DefaultConfig.DataBits
	}
	return cfg, nil
}
